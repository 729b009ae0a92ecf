//go:build mage

// Package main provides build targets for xmlshred using Mage.
//
// Usage:
//
//	mage build     Compile the xmlshred binary to bin/
//	mage test      Run all tests
//	mage testRace  Run all tests with the race detector
//	mage lint      Run golangci-lint
//	mage load      Import a generated document and print the result
//	mage clean     Remove build artifacts
//	mage install   Install xmlshred to GOPATH/bin
//	mage stats     Print Go line counts as JSON
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "xmlshred"
	binaryDir  = "bin"
	cmdDir     = "./cmd/xmlshred"
	versionVar = "github.com/mesh-intelligence/xmlshred/internal/cli.Version"
)

// Build compiles the xmlshred binary to bin/. XMLSHRED_VERSION, when set,
// is stamped into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if v := os.Getenv("XMLSHRED_VERSION"); v != "" {
		args = append(args, "-ldflags", "-X "+versionVar+"="+v)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// TestRace runs all tests with the race detector.
func TestRace() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Load generates a synthetic document and imports it into a scratch
// database under bin/load. LOAD_CUSTOMERS sets the document size.
func Load() error {
	mg.Deps(Build)
	dir := filepath.Join(binaryDir, "load")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	customers := os.Getenv("LOAD_CUSTOMERS")
	if customers == "" {
		customers = "20000"
	}

	bin := filepath.Join(binaryDir, binaryName)
	doc := filepath.Join(dir, "load.xml")
	if err := sh.RunV(bin, "generate", "--customers", customers, "--seed", "1", "-o", doc); err != nil {
		return err
	}
	return sh.RunV(bin, "import", "--force", "--data-dir", dir, "--db", filepath.Join(dir, "load.sqlite"), doc)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Stats prints Go line counts for production and test code as JSON.
func Stats() error {
	var prodLines, testLines int

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			switch path {
			case "vendor", ".git", binaryDir, "magefiles", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") {
			testLines += count
		} else {
			prodLines += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	line, err := json.Marshal(map[string]int{
		"go_loc_prod": prodLines,
		"go_loc_test": testLines,
		"go_loc":      prodLines + testLines,
	})
	if err != nil {
		return err
	}
	fmt.Println(string(line))
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
