package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// outputLock не дает двум задачам писать в один выходной файл,
// в том числе из разных процессов.
type outputLock struct {
	fl *flock.Flock
}

// lockPath - файл блокировки во временной директории ОС. Имя выводится
// из абсолютного пути выхода (UUID v5), чтобы не зависеть от его символов.
func lockPath(output string) (string, error) {
	abs, err := filepath.Abs(output)
	if err != nil {
		return "", err
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs))
	return filepath.Join(os.TempDir(), "zoomcut-"+id.String()+".lock"), nil
}

func acquireOutputLock(output string) (*outputLock, error) {
	path, err := lockPath(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputBusy, output)
	}
	return &outputLock{fl: fl}, nil
}

// release снимает блокировку и удаляет файл, чтобы после задачи во
// временной директории ничего не оставалось. Если файл успел захватить
// другой процесс, он пересоздаст его при следующей попытке.
func (l *outputLock) release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	if err := os.Remove(l.fl.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// checkOutputWritable проверяет, что в директорию выхода можно писать и
// что сам путь не занят директорией. Ничего не оставляет после себя.
func checkOutputWritable(output string) error {
	if fi, err := os.Stat(output); err == nil && fi.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrOutputUnwritable, output)
	}

	dir := filepath.Dir(output)
	fi, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: directory %s does not exist", ErrOutputUnwritable, dir)
		}
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrOutputUnwritable, dir)
	}

	probe, err := os.CreateTemp(dir, ".zoomcut-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// partialPath - скрытый временный файл рядом с целевым. Расширение
// сохраняется, ffmpeg выбирает по нему контейнер.
func partialPath(output, jobID string) string {
	dir, base := filepath.Split(output)
	ext := filepath.Ext(base)
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.part%s", base[:len(base)-len(ext)], short, ext))
}
