package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// AttachmentDir copies attached files into one directory per task,
// <root>/<task-id>/<basename>. It only manages the files; the task's
// attachment path list lives on the Task itself, and opening files is
// the presentation layer's job.
type AttachmentDir struct {
	root string
}

// NewAttachmentDir opens (or creates) the attachment root directory.
func NewAttachmentDir(root string) (*AttachmentDir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating attachment directory %s: %w", root, err)
	}
	return &AttachmentDir{root: root}, nil
}

func (d *AttachmentDir) taskDir(taskID int64) string {
	return filepath.Join(d.root, strconv.FormatInt(taskID, 10))
}

// Attach copies the file at src into the task's directory and returns
// the destination path for the task's attachment list.
func (d *AttachmentDir) Attach(taskID int64, src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening attachment %s: %w", src, err)
	}
	defer in.Close()

	dir := d.taskDir(taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating attachment directory %s: %w", dir, err)
	}

	dest := filepath.Join(dir, filepath.Base(src))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating attachment copy %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copying attachment to %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("flushing attachment copy %s: %w", dest, err)
	}
	return dest, nil
}

// List returns the stored attachment paths for a task, sorted by name.
func (d *AttachmentDir) List(taskID int64) ([]string, error) {
	entries, err := os.ReadDir(d.taskDir(taskID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing attachments for task %d: %w", taskID, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(d.taskDir(taskID), entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// RemoveAll deletes every attachment stored for a task.
func (d *AttachmentDir) RemoveAll(taskID int64) error {
	if err := os.RemoveAll(d.taskDir(taskID)); err != nil {
		return fmt.Errorf("removing attachments for task %d: %w", taskID, err)
	}
	return nil
}
