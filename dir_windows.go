// +build windows

package verashield

import (
	"os"
	"os/user"
	"path/filepath"
)

//	Find home directory of logged-in user
func UnsudoedHomeDir() (home string) {
	currentUser, err := user.Current()
	if err == nil && currentUser != nil {
		home = currentUser.HomeDir
	} else {
		log.Notice("falling back to $HOME")
		home = os.Getenv("HOME")
		err = nil
	}
	return
}

func VeraShieldDir() (path string, err error) {
	home := UnsudoedHomeDir()
	path = filepath.Join(home, "appdata", "local", "VeraShield")
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
