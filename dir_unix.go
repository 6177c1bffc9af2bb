// +build !windows

package verashield

import (
	"os"
	"os/user"
	"path/filepath"
)

//	Find home directory of logged-in user even when run as sudo
func UnsudoedHomeDir() (home string) {
	userName := os.Getenv("SUDO_USER")
	if userName == "" {
		userName = os.Getenv("USER")
	}
	currentUser, err := user.Lookup(userName)
	if err == nil && currentUser != nil {
		home = currentUser.HomeDir
	} else {
		log.Notice("falling back to $HOME")
		home = os.Getenv("HOME")
		err = nil
	}
	if os.Getenv("HOME") != home {
		os.Setenv("HOME", home)
	}
	return
}

func VeraShieldDir() (path string, err error) {
	home := UnsudoedHomeDir()
	path = filepath.Join(home, ".verashield")
	err = os.MkdirAll(path, os.FileMode(0700))
	return
}

func VeraShieldDirFile(file string) (fullPath string, err error) {
	path, err := VeraShieldDir()
	if err != nil {
		return
	}
	fullPath = filepath.Join(path, file)
	return
}
