// Package archive unpacks submitted zip archives into a per-job working
// directory. Archives are produced by many registry offices and frequently
// carry extra members (projection files, documentation, nested folders);
// extraction is tolerant of anything that is not a corrupt zip.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxMemberSize caps a single decompressed member. Survey shapefiles are tens
// of megabytes at most; anything larger is a hostile or broken archive.
const maxMemberSize = 1 << 30 // 1 GiB

// Extract unpacks the zip archive at archivePath into destDir.
// Directory structure inside the archive is flattened: paired shapefile
// members must end up side by side regardless of how the office zipped them.
func Extract(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", filepath.Base(archivePath), err)
	}
	defer reader.Close()

	if len(reader.File) == 0 {
		return fmt.Errorf("archive %s is empty", filepath.Base(archivePath))
	}

	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if err := extractMember(member, destDir); err != nil {
			return err
		}
	}

	return nil
}

// extractMember writes one archive member into destDir under its base name.
func extractMember(member *zip.File, destDir string) error {
	name := filepath.Base(member.Name)

	// Reject members that would escape the working directory.
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return fmt.Errorf("archive member %q has an unsafe name", member.Name)
	}

	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive member %s: %w", member.Name, err)
	}
	defer src.Close()

	destPath := filepath.Join(destDir, name)
	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, maxMemberSize)); err != nil {
		return fmt.Errorf("failed to extract %s: %w", member.Name, err)
	}

	return nil
}

// FindByExtension returns the path of the first file in dir with the given
// extension (case-insensitive, e.g. ".shp"). Returns an empty string when no
// such file exists.
func FindByExtension(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", nil
}
