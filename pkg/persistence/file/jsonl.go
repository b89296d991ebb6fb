package file

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sync"
)

// jsonLines is an append-only log of JSON documents, one file per key.
type jsonLines struct {
	mu  sync.Mutex
	dir string
}

func (j *jsonLines) path(key string) string {
	return path.Join(j.dir, key+".jsonl")
}

func (j *jsonLines) append(key string, value any) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", j.dir, err)
	}

	file, err := os.OpenFile(j.path(key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", j.path(key), err)
	}

	if _, err := file.Write(append(line, '\n')); err != nil {
		_ = file.Close()

		return fmt.Errorf("failed to append entry: %w", err)
	}

	return file.Close()
}

// read decodes every entry stored under key, calling decode once per line.
func (j *jsonLines) read(key string, decode func(line []byte) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to open %s: %w", j.path(key), err)
	}

	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		if err := decode(scanner.Bytes()); err != nil {
			return err
		}
	}

	return scanner.Err()
}
