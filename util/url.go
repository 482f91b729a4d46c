package util

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// FilenameFromURL returns the last element of the URL's path, if it makes a usable local filename.
func FilenameFromURL(u *url.URL) (string, error) {
	if u == nil {
		return "", ErrNoFilename
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "", ErrNoFilename
	}
	filename := path.Base(p)
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	// An escaped separator would otherwise reach into another directory
	if strings.ContainsAny(filename, `/\`) {
		return "", ErrNoFilename
	}
	return filename, nil
}

func FilenameFromURLString(s string) (string, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	return FilenameFromURL(u)
}
