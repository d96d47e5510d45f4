package ephemeris

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"

	pp "github.com/soniakeys/meeus/v3/planetposition"
)

const meeusModule = "github.com/soniakeys/meeus/v3"

// VSOP87B file extensions by planetposition body index.
var vsopExt = map[int]string{
	pp.Mercury: "mer",
	pp.Venus:   "ven",
	pp.Earth:   "ear",
	pp.Mars:    "mar",
	pp.Jupiter: "jup",
	pp.Saturn:  "sat",
	pp.Uranus:  "ura",
	pp.Neptune: "nep",
}

// vsopFiles lists the VSOP87B files present in dir, sorted by name.
func vsopFiles(dir string) ([]os.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(strings.ToUpper(e.Name()), "VSOP87B.") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
	return files, nil
}

// ValidatePath checks that dir is a directory holding the complete VSOP87B
// data set. It reports every missing file in one error.
func ValidatePath(dir string) error {
	stats, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("VSOP87 data files not found at %s: %w", dir, err)
	}
	if !stats.IsDir() {
		return fmt.Errorf("VSOP87 path %s is not a directory", dir)
	}

	files, err := vsopFiles(dir)
	if err != nil {
		return fmt.Errorf("error reading VSOP87 path %s: %w", dir, err)
	}
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[strings.ToLower(filepath.Ext(f.Name()))] = true
	}

	var missing []string
	for _, ext := range vsopExt {
		if !present["."+ext] {
			missing = append(missing, "VSOP87B."+ext)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("VSOP87 data set incomplete in %s, missing: %s", dir, strings.Join(missing, ", "))
	}
	return nil
}

// Fileset returns a deterministic identifier for the VSOP87 files in dir.
// It changes whenever a file is added, removed or changes size.
func Fileset(dir string) (string, error) {
	files, err := vsopFiles(dir)
	if err != nil {
		return "", fmt.Errorf("error reading VSOP87 path %s: %w", dir, err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no VSOP87B files found in %s", dir)
	}

	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("%s:%d", f.Name(), f.Size()))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("vsop87b-%dfiles-%s", len(files), hex.EncodeToString(sum[:])[:16]), nil
}

// EngineVersion reports the meeus module version compiled into the binary.
func EngineVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == meeusModule {
				return "meeus " + dep.Version
			}
		}
	}
	return "meeus v3"
}
