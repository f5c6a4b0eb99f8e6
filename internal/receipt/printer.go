package receipt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/dynatos/pos-terminal/internal/domain"
)

// Printer hands a rendered receipt to the host print facility. Print returns
// once the receipt has been handed over.
type Printer interface {
	Print(ctx context.Context, r domain.Receipt) error
}

// WriterPrinter renders to a writer, normally stdout or a serial device.
type WriterPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterPrinter(w io.Writer) *WriterPrinter {
	return &WriterPrinter{w: w}
}

func (p *WriterPrinter) Print(_ context.Context, r domain.Receipt) error {
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// DirPrinter drops one file per sale into a spool directory watched by the
// print daemon.
type DirPrinter struct {
	dir string
}

func NewDirPrinter(dir string) *DirPrinter {
	return &DirPrinter{dir: dir}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (p *DirPrinter) Path(r domain.Receipt) string {
	name := unsafeName.ReplaceAllString(r.SaleNumber, "_")
	if name == "" {
		name = r.IssuedAt.Format("20060102T150405")
	}
	return filepath.Join(p.dir, "receipt-"+name+".txt")
}

func (p *DirPrinter) Print(ctx context.Context, r domain.Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create spool dir: %w", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		return err
	}

	path := p.Path(r)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	// rename so the print daemon never picks up a partial file
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish receipt: %w", err)
	}
	return nil
}
