package file

import (
	"errors"
	"fmt"
)

var (
	ErrNoFileID          = errors.New("file does not have a file_id")
	ErrFileExists        = errors.New("file already exists")
	ErrPathNotAllowed    = errors.New("path is outside of the allowed root")
	ErrMalformedPath     = errors.New("malformed path")
	ErrNoDownloader      = errors.New("downloader is not configured")
	ErrFileTooLarge      = errors.New("file is too large for the bot api")
	ErrCalculateChecksum = errors.New("failed to calculate checksum")
)

type ErrDownloadFailed struct {
	Err error
}

func (e *ErrDownloadFailed) Error() string {
	return fmt.Errorf("failed to download file: %w", e.Err).Error()
}

func (e *ErrDownloadFailed) Unwrap() error {
	return e.Err
}

type ErrPrepareFilepath struct {
	Err error
}

func (e *ErrPrepareFilepath) Error() string {
	return fmt.Errorf("failed to prepare file path: %w", e.Err).Error()
}

func (e *ErrPrepareFilepath) Unwrap() error {
	return e.Err
}

type ErrReadDir struct {
	Err error
}

func (e *ErrReadDir) Error() string {
	return fmt.Errorf("failed to read directory: %w", e.Err).Error()
}

func (e *ErrReadDir) Unwrap() error {
	return e.Err
}
