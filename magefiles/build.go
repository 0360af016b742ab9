//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the cache-file inspector binary.
func (Build) Inspector() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/nmesh-inspect", "."), withStream()); err != nil {
		return err
	}
	return nil
}
