package services

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrUpstream            = errors.New("model request failed")
)
