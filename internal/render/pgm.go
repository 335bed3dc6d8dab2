package render

import (
	"bufio"
	"fmt"
	"os"
)

// WritePGM writes f as a binary PGM (P5) file.
func WritePGM(f *Frame, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n255\n", f.Cols, f.Rows); err != nil {
		return fmt.Errorf("failed to write PGM header: %w", err)
	}
	if _, err := w.Write(f.Pix); err != nil {
		return fmt.Errorf("failed to write PGM data: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}
