package hub

import "errors"

var (
	ErrHubAlreadyRunning    = errors.New("hub is already running")
	ErrHubNotRunning        = errors.New("hub is not running")
	ErrBroadcastChannelFull = errors.New("broadcast channel is full")
)
