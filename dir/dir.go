// Package dir provides small filesystem-walk helpers used by the Control
// Plane and Unification stage for housekeeping over their own on-disk
// output: pruning expired group directories, sizing the output tree, and
// (in process.go) locating worker processes by argv when a PID file is
// stale.
package dir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// RegexEndsWith returns a regex matching strings ending in val.
func RegexEndsWith(val string) string {
	return fmt.Sprintf("^.*(%s)$", val)
}

// RegexEndsWithBeforeExt returns a regex matching strings ending in val
// before a file extension.
func RegexEndsWithBeforeExt(val string) string {
	return fmt.Sprintf("^.*(%s)\\..*$", val)
}

// RegexBeginsWith returns a regex matching strings beginning with val.
func RegexBeginsWith(val string) string {
	return fmt.Sprintf("^(%s).*$", val)
}

// Size returns the total size in bytes of every file under path whose
// name matches regex ("" matches everything).
func Size(path string, regex string) (uint64, error) {
	var size uint64
	isDesired := regexp.MustCompile(regex)
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			if matched := isDesired.MatchString(info.Name()); matched || len(regex) == 0 {
				size += uint64(info.Size())
			}
		}
		return nil
	})
	return size, err
}

// List returns every file under path whose name matches regex.
func List(path string, regex string) ([]os.FileInfo, error) {
	result := make([]os.FileInfo, 0)
	isDesired := regexp.MustCompile(regex)
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			if matched := isDesired.MatchString(info.Name()); matched || len(regex) == 0 {
				result = append(result, info)
			}
		}
		return nil
	})
	return result, err
}

// Expired returns every file under path matching regex whose mod time is
// older than maxAge relative to now. Unification uses this to prune
// output/<sync_key>/ frame and combined.jpg files once they outlive the
// pipeline's retention window.
func Expired(path string, regex string, now time.Time, maxAge time.Duration) ([]os.FileInfo, error) {
	result := make([]os.FileInfo, 0)
	isDesired := regexp.MustCompile(regex)
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			if matched := isDesired.MatchString(info.Name()); matched || len(regex) == 0 {
				if now.Sub(info.ModTime()) > maxAge {
					result = append(result, info)
				}
			}
		}
		return nil
	})
	return result, err
}

// BytesToMegaBytes converts bytes to megabytes.
func BytesToMegaBytes(in uint64) float64 {
	return float64(in) / 1000 / 1000
}

// BytesToGigaBytes converts bytes to gigabytes.
func BytesToGigaBytes(in uint64) float64 {
	return float64(in) / 1000 / 1000 / 1000
}

// AscendingTime sorts os.FileInfo oldest first.
type AscendingTime []os.FileInfo

func (a AscendingTime) Len() int           { return len(a) }
func (a AscendingTime) Less(i, j int) bool { return a[i].ModTime().Before(a[j].ModTime()) }
func (a AscendingTime) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }

// DescendingTime sorts os.FileInfo newest first.
type DescendingTime []os.FileInfo

func (a DescendingTime) Len() int           { return len(a) }
func (a DescendingTime) Less(i, j int) bool { return a[i].ModTime().After(a[j].ModTime()) }
func (a DescendingTime) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
