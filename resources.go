package installer

import (
	"os"
	"regexp"

	rice "github.com/GeertJohan/go.rice"
	"github.com/pkg/errors"
)

var resourceBox *rice.Box

// OpenBoxes locates the embedded resource payload. For go.rice's 'append' mode
// to work, all calls to FindBox() have to be with a literal string parameter.
func OpenBoxes() {
	var err error
	resourceBox, err = rice.FindBox("resources")
	if err != nil {
		panic(err)
	}
}

// GetResource returns the contents of the named file from the resource box.
func GetResource(name string) (string, error) {
	if resourceBox == nil {
		return "", errors.New("resource box not opened")
	}
	text, err := resourceBox.String(name)
	if err != nil {
		return "", errors.Wrapf(err, "resource '%s' not found", name)
	}
	return text, nil
}

// GetResourceBytes returns the raw bytes of the named file from the resource
// box, for binary assets like icons.
func GetResourceBytes(name string) ([]byte, error) {
	if resourceBox == nil {
		return nil, errors.New("resource box not opened")
	}
	content, err := resourceBox.Bytes(name)
	if err != nil {
		return nil, errors.Wrapf(err, "resource '%s' not found", name)
	}
	return content, nil
}

// MustGetResource is GetResource for resources that are compiled in
// unconditionally, where absence is a packaging error.
func MustGetResource(name string) string {
	text, err := GetResource(name)
	if err != nil {
		panic(err)
	}
	return text
}

// GetResourcesFiltered returns the contents of all files under the given
// resource directory whose path matches the filter, keyed by path.
func GetResourcesFiltered(dir string, filter *regexp.Regexp) (map[string]string, error) {
	if resourceBox == nil {
		return nil, errors.New("resource box not opened")
	}
	files := make(map[string]string)
	err := resourceBox.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filter.MatchString(path) {
			content, err := resourceBox.String(path)
			if err != nil {
				return err
			}
			files[path] = content
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "resource dir '%s'", dir)
	}
	return files, nil
}
