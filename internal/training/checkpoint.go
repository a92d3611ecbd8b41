package training

import (
	"log/slog"
)

// Saver writes a model to a file atomically.
type Saver interface {
	SaveFile(path string) error
}

// FileCheckpointer saves the model to a fixed path; each checkpoint replaces the previous one.
type FileCheckpointer struct {
	Path  string
	Model Saver
	// Saved counts the checkpoints written.
	Saved int
}

// Checkpoint writes the model to Path.
func (f *FileCheckpointer) Checkpoint(epoch int, accuracy float64) error {
	if err := f.Model.SaveFile(f.Path); err != nil {
		return err
	}
	f.Saved++
	slog.Info("NEW BEST ACCURACY! Model saved", "path", f.Path, "epoch", epoch, "accuracy", accuracy)
	return nil
}
