// Copyright 2016 CoreOS, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package platform

import (
	"bufio"
	"bytes"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DylibSearchDirs runs ldd against binary and returns the set of absolute
// directories its dynamic dependencies live in, for augmenting the child's
// library search path per spec.md §6 ("Dylib search path augmented to
// include all discovered dynamic-library directories"). Adapted from
// mantle/system/targen/ldd.go's ldd() helper: same "ldd, scan for absolute
// paths" technique, generalized from "list of library files" to "set of
// containing directories" since that's what an env var augmentation needs.
func DylibSearchDirs(binary string) ([]string, error) {
	if runtime.GOOS == "windows" {
		return nil, nil
	}

	c := exec.Command("ldd", binary)
	c.Env = []string{} // don't let LD_PRELOAD etc. get involved

	out, err := c.CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "not a dynamic executable") {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var dirs []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		w := sc.Text()
		if !filepath.IsAbs(w) {
			continue
		}
		dir := filepath.Dir(w)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// LibraryPathEnvVar is the dynamic-linker search-path environment variable
// for the current platform.
func LibraryPathEnvVar() string {
	if runtime.GOOS == "darwin" {
		return "DYLD_LIBRARY_PATH"
	}
	return "LD_LIBRARY_PATH"
}
