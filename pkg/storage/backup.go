package storage

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Backup writes a zip archive of every namespace file into destDir and
// returns its path. Files stay encrypted inside the archive.
func (s *FileStore) Backup(destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return "", err
	}
	timestamp := time.Now().Format("20060102-150405")
	zipPath := filepath.Join(destDir, "uninotes-backup-"+timestamp+".zip")

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", err
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	s.mutex.RLock()
	files, err := filepath.Glob(filepath.Join(s.dataDir, "*.json"))
	if err == nil {
		for _, file := range files {
			if _, ok := s.namespaceOf(file); !ok {
				continue
			}
			if err = addToZip(zipWriter, file, "namespaces/"+filepath.Base(file)); err != nil {
				break
			}
		}
	}
	s.mutex.RUnlock()

	if err != nil {
		zipWriter.Close()
		os.Remove(zipPath)
		return "", fmt.Errorf("backup: %w", err)
	}
	if err := zipWriter.Close(); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}

	s.log.WithField("path", zipPath).WithField("files", len(files)).Info("backup written")
	return zipPath, nil
}

func addToZip(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
