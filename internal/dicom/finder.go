package dicom

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DicomExtensions are common DICOM file extensions
var DicomExtensions = []string{".dcm", ".DCM", ".dicom", ".DICOM"}

// ExcludedNames are filenames to skip
var ExcludedNames = map[string]bool{
	"DICOMDIR":    true,
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
	"README":      true,
	"README.md":   true,
	"LICENSE":     true,
	".gitignore":  true,
}

// ExcludedExtensions are file extensions to skip
var ExcludedExtensions = map[string]bool{
	".json":   true,
	".yaml":   true,
	".yml":    true,
	".xml":    true,
	".txt":    true,
	".md":     true,
	".log":    true,
	".csv":    true,
	".zip":    true,
	".tar":    true,
	".gz":     true,
	".png":    true,
	".jpg":    true,
	".jpeg":   true,
	".bmp":    true,
	".pdf":    true,
	".html":   true,
	".db":     true,
	".sqlite": true,
}

// ExcludedDirs are directory names to skip entirely
var ExcludedDirs = map[string]bool{
	".git":         true,
	"deidentified": true,
	"evidence":     true,
}

// FindDicomFiles finds all DICOM files in the given path.
func FindDicomFiles(inputPath string, recursive bool) ([]string, error) {
	var files []string
	seenFiles := make(map[string]bool)

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if info.IsDir() {
			if ExcludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			if !recursive && path != inputPath {
				return filepath.SkipDir
			}
			return nil
		}

		if ExcludedNames[info.Name()] {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ExcludedExtensions[ext] {
			return nil
		}

		isDicom := false
		for _, de := range DicomExtensions {
			if ext == strings.ToLower(de) {
				isDicom = true
				break
			}
		}

		// If no recognized extension, check DICOM magic bytes
		if !isDicom && hasDicomMagicBytes(path) {
			isDicom = true
		}

		if isDicom && !seenFiles[path] {
			files = append(files, path)
			seenFiles[path] = true
		}

		return nil
	}

	if err := filepath.Walk(inputPath, walkFn); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// hasDicomMagicBytes checks if a file has the DICOM magic bytes ("DICM" at offset 128)
func hasDicomMagicBytes(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 132)
	n, err := io.ReadFull(file, header)
	if err != nil || n < 132 {
		return false
	}

	return string(header[128:132]) == "DICM"
}
