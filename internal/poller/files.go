package poller

import (
	"os"
	"path/filepath"
)

const maxDescribeBytes = 10 * 1024 * 1024

func fileBase(path string) string {
	return filepath.Base(path)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func readCapped(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > maxDescribeBytes {
		data = data[:maxDescribeBytes]
	}
	return data, nil
}
