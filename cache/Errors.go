package cache

import "errors"

// Error implements errors unique to the episode cache.
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

var errNoSuchEpisode = errors.New("no such episode")

var errEmptyCache = errors.New("cache empty")

// IsNoSuchEpisode returns whether or not an error reports that a
// requested episode is not in the cache.
func IsNoSuchEpisode(err error) bool {
	return errors.Is(err, errNoSuchEpisode)
}

// IsEmptyCache returns whether or not an error reports that the cache
// holds no episodes.
func IsEmptyCache(err error) bool {
	return errors.Is(err, errEmptyCache)
}
