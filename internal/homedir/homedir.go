package homedir

import (
	"os"
	"os/user"
)

// Get returns the current user's home directory, or "" if it cannot
// be determined.
func Get() string {
	h := os.Getenv("HOME")
	if h != "" {
		return h
	}

	usr, err := user.Current()
	if err != nil {
		return ""
	}
	return usr.HomeDir
}
