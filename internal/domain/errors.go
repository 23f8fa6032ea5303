package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")
var ErrJobState = errors.New("invalid job state transition")
var ErrFileExpired = errors.New("file expired")
var ErrInvalidURL = errors.New("invalid url")
var ErrInvalidToken = errors.New("invalid download token")
var ErrInvalidProgress = errors.New("invalid progress")
