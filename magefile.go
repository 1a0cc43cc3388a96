//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

func Build() error {
	mg.Deps(BuildConverter)
	mg.Deps(BuildMeasureBatch)
	fmt.Println("Compilation finished")
	return nil
}

// The converter links libhdf5 through cgo for .h5 calibration files.
func BuildConverter() error {
	fmt.Println("Building converter executable...")
	return goCommand(true, "build", "-o", "./bin/converter", "./converter")
}

func BuildMeasureBatch() error {
	fmt.Println("Building measureBatch executable...")
	return goCommand(false, "build", "-o", "./bin/measureBatch", "./measureBatch")
}

// Test runs the library tests. The HDF5 loader is skipped unless
// HDF5_TESTS is set, its package needs libhdf5 at link time.
func Test() error {
	fmt.Println("Running tests...")
	packages := []string{"./pkg", "./internal/..."}
	if os.Getenv("HDF5_TESTS") != "" {
		packages = append(packages, "./pkg/hdf5calib")
	}
	return goCommand(true, append([]string{"test", "-race", "-count=1"}, packages...)...)
}

func Clean() error {
	fmt.Println("Removing bin/")
	return os.RemoveAll("bin")
}

func goCommand(cgo bool, args ...string) error {
	cmd := exec.Command("go", args...)
	cmd.Env = os.Environ()
	if cgo {
		cmd.Env = append(cmd.Env,
			"CGO_ENABLED=1",
			fmt.Sprintf("CGO_LDFLAGS=%s", os.Getenv("CGO_LDFLAGS")),
			fmt.Sprintf("CGO_CFLAGS=%s", os.Getenv("CGO_CFLAGS")))
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
