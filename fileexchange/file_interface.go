// Package fileexchange transfers measurement result files from the Term software.
//
// The Term software cannot write results to network drives. A FileInterface opens a second
// connection, named "FileExchange" by default, over which single files can be requested with
// AcquireFile, or over which Thales pushes every new result file once automatic file exchange
// is enabled.
//
// A file is transferred as its full path on the file path channel, its length as decimal text
// on the file length channel and the content in one or more chunks on the file data channel.
package fileexchange

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-thales/internal/pool"
	"github.com/arloliu/go-thales/internal/task"
	"github.com/arloliu/go-thales/logger"
	"github.com/arloliu/go-thales/remote"
	"github.com/arloliu/go-thales/telegram"
	"go.uber.org/multierr"
)

const (
	// DefaultConnectionName is the name the file interface registers with.
	DefaultConnectionName = "FileExchange"

	// DefaultExtensions selects EIS, CV, sequence and IE result files.
	DefaultExtensions = "*.ism*.isc*.isw*.iss"

	defaultPollTimeout = time.Second
	defaultDrainDelay  = time.Second
)

var (
	// ErrInvalidTransfer is returned when the length or the path of an incoming file is malformed.
	ErrInvalidTransfer = errors.New("invalid file transfer")
)

// Transport is the part of a Term connection used by a FileInterface.
// *remote.Connection implements it.
type Transport interface {
	SendString(s string, ch telegram.Channel, timeout time.Duration) error
	SendStringAndWaitForReplyString(payload string, ch telegram.Channel, timeout time.Duration, replyCh telegram.Channel) (string, error)
	WaitForStringTelegram(ch telegram.Channel, timeout time.Duration) (string, error)
	WaitForBinaryTelegram(ch telegram.Channel, timeout time.Duration) ([]byte, error)
	ConnectionName() string
	Disconnect() error
}

// FileData is a file received from the Term software.
type FileData struct {
	// Name is the file name without directories.
	Name string
	// Path is the full path on the workstation.
	Path string
	Data []byte
}

// FileInterface receives files over a dedicated Term connection.
type FileInterface struct {
	transport Transport
	name      string
	logger    logger.Logger
	taskMgr   *task.Manager

	pollTimeout time.Duration
	drainDelay  time.Duration

	automatic atomic.Bool

	mu          sync.Mutex
	filesToSkip []string
	files       []FileData
	savePath    string
	saveToDisk  bool
	keepFiles   bool
}

// Dial connects to the Term software at host and returns a FileInterface on the new connection.
// Connection options are passed with WithConnOptions, the connection name defaults to
// DefaultConnectionName.
func Dial(ctx context.Context, host string, opts ...Option) (*FileInterface, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	connOpts := append([]remote.ConnOption{remote.WithConnectionName(DefaultConnectionName)}, cfg.connOpts...)
	conn, err := remote.Dial(ctx, host, connOpts...)
	if err != nil {
		return nil, err
	}

	f, err := newFileInterface(ctx, conn, cfg)
	if err != nil {
		return nil, multierr.Append(err, conn.Disconnect())
	}

	return f, nil
}

// New creates a FileInterface on an already connected transport. The FileInterface owns the
// transport afterwards and disconnects it in Close.
func New(transport Transport, opts ...Option) (*FileInterface, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return newFileInterface(context.Background(), transport, cfg)
}

func newFileInterface(ctx context.Context, transport Transport, cfg *config) (*FileInterface, error) {
	if transport == nil {
		return nil, errors.New("fileexchange: nil transport")
	}

	savePath := cfg.savePath
	if savePath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		savePath = wd
	}

	name := transport.ConnectionName()
	l := cfg.logger.With("conn", name)

	return &FileInterface{
		transport:   transport,
		name:        name,
		logger:      l,
		taskMgr:     task.NewManager(context.WithoutCancel(ctx), l),
		pollTimeout: cfg.pollTimeout,
		drainDelay:  cfg.drainDelay,
		filesToSkip: slices.Clone(cfg.filesToSkip),
		savePath:    savePath,
		keepFiles:   true,
	}, nil
}

// Close disables automatic file exchange and disconnects the transport.
func (f *FileInterface) Close() error {
	var err error
	if f.automatic.Load() {
		_, err = f.DisableAutomaticFileExchange()
	}

	return multierr.Append(err, f.transport.Disconnect())
}

// EnableAutomaticFileExchange turns automatic file exchange on or off.
//
// When enabled, Thales sends every new file matching extensions, e.g. "*.ism*.isc", and a
// background worker stores the files in the object and optionally on disk. An empty extensions
// string selects DefaultExtensions. Disabling waits a short drain delay so files already on the
// way are still received, then stops the worker.
func (f *FileInterface) EnableAutomaticFileExchange(enable bool, extensions string) (string, error) {
	if !enable {
		return f.DisableAutomaticFileExchange()
	}

	if extensions == "" {
		extensions = DefaultExtensions
	}

	reply, err := f.transport.SendStringAndWaitForReplyString(
		fmt.Sprintf("3,%s,4,ON,%s", f.name, extensions),
		telegram.ChannelControl, 0, telegram.ChannelFileAck)
	if err != nil {
		return "", err
	}

	if err := f.startWorker(); err != nil {
		return reply, err
	}

	return reply, nil
}

// DisableAutomaticFileExchange turns automatic file exchange off.
func (f *FileInterface) DisableAutomaticFileExchange() (string, error) {
	reply, err := f.transport.SendStringAndWaitForReplyString(
		fmt.Sprintf("3,%s,4,OFF", f.name),
		telegram.ChannelControl, 0, telegram.ChannelFileAck)

	_ = pool.Sleep(context.Background(), f.drainDelay)
	f.stopWorker()

	return reply, err
}

// IsAutomaticFileExchangeEnabled reports whether the background worker is running.
func (f *FileInterface) IsAutomaticFileExchangeEnabled() bool {
	return f.automatic.Load()
}

// AcquireFile requests a single file by its full path on the workstation,
// e.g. `C:\THALES\temp\test1\myeis.ism`, and blocks until it is transferred.
//
// Only available while automatic file exchange is off, otherwise it returns nil without
// sending anything.
func (f *FileInterface) AcquireFile(path string) (*FileData, error) {
	if f.automatic.Load() {
		f.logger.Warn("AcquireFile is not available with automatic file exchange", "path", path)
		return nil, nil
	}

	if err := f.transport.SendString(fmt.Sprintf("3,%s,1,%s", f.name, path), telegram.ChannelControl, 0); err != nil {
		return nil, err
	}

	return f.receiveFile(0)
}

// AppendFilesToSkip adds file names which are dropped by the automatic file exchange.
// "lastshot.ism" is skipped by default.
func (f *FileInterface) AppendFilesToSkip(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.filesToSkip = append(f.filesToSkip, names...)
}

// SetSavePath sets the local directory received files are saved to and creates it.
func (f *FileInterface) SetSavePath(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	f.mu.Lock()
	f.savePath = path
	f.mu.Unlock()

	return nil
}

// EnableSaveReceivedFilesToDisk makes the automatic file exchange write every received file
// to the save path. A non-empty path replaces the save path, see SetSavePath.
func (f *FileInterface) EnableSaveReceivedFilesToDisk(path string) error {
	if path != "" {
		if err := f.SetSavePath(path); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.saveToDisk = true
	f.mu.Unlock()

	return nil
}

func (f *FileInterface) DisableSaveReceivedFilesToDisk() {
	f.mu.Lock()
	f.saveToDisk = false
	f.mu.Unlock()
}

// EnableKeepReceivedFilesInObject keeps received files in memory, the default. Long running
// automatic exchanges that only save to disk should disable it.
func (f *FileInterface) EnableKeepReceivedFilesInObject() {
	f.mu.Lock()
	f.keepFiles = true
	f.mu.Unlock()
}

func (f *FileInterface) DisableKeepReceivedFilesInObject() {
	f.mu.Lock()
	f.keepFiles = false
	f.mu.Unlock()
}

// ReceivedFiles returns a copy of the files kept in memory, oldest first.
func (f *FileInterface) ReceivedFiles() []FileData {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.files)
}

// LatestReceivedFile returns the newest file kept in memory.
func (f *FileInterface) LatestReceivedFile() (FileData, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.files) == 0 {
		return FileData{}, false
	}

	return f.files[len(f.files)-1], true
}

// DeleteReceivedFiles drops all files kept in memory.
func (f *FileInterface) DeleteReceivedFiles() {
	f.mu.Lock()
	f.files = nil
	f.mu.Unlock()
}

// receiveFile receives one file. It returns nil without error if no path arrived within
// timeout, a timeout <= 0 waits indefinitely. Length and content are awaited without timeout.
func (f *FileInterface) receiveFile(timeout time.Duration) (*FileData, error) {
	path, err := f.transport.WaitForStringTelegram(telegram.ChannelFilePath, timeout)
	if err != nil {
		if errors.Is(err, remote.ErrReceiveTimeout) {
			return nil, nil
		}
		return nil, err
	}

	lengthText, err := f.transport.WaitForStringTelegram(telegram.ChannelFileLength, 0)
	if err != nil {
		return nil, err
	}

	length, err := strconv.Atoi(strings.TrimSpace(lengthText))
	if err != nil || length < 0 {
		return nil, fmt.Errorf("%w: length %q for %s", ErrInvalidTransfer, lengthText, path)
	}

	data := make([]byte, 0, length)
	for remaining := length; remaining > 0; {
		chunk, err := f.transport.WaitForBinaryTelegram(telegram.ChannelFileData, 0)
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
		remaining -= len(chunk)
	}

	f.logger.Debug("file received", "path", path, "length", len(data))

	return &FileData{Name: fileName(path), Path: path, Data: data}, nil
}

// fileName returns the last segment of a Windows or slash separated path.
func fileName(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}

	return path
}

func (f *FileInterface) startWorker() error {
	if !f.automatic.CompareAndSwap(false, true) {
		return nil
	}

	if err := f.taskMgr.Start("fileWorker", f.receiveOnce); err != nil {
		f.automatic.Store(false)
		return err
	}

	return nil
}

func (f *FileInterface) stopWorker() {
	if !f.automatic.CompareAndSwap(true, false) {
		return
	}

	f.taskMgr.Stop()
	f.taskMgr.Wait()
}

// receiveOnce is one iteration of the automatic file exchange worker.
func (f *FileInterface) receiveOnce() bool {
	if !f.automatic.Load() {
		return false
	}

	file, err := f.receiveFile(f.pollTimeout)
	if err != nil {
		f.logger.Error("file worker stopped", "error", err)
		f.automatic.Store(false)

		return false
	}
	if file == nil {
		return true
	}

	if err := f.store(file); err != nil {
		f.logger.Error("file worker stopped", "file", file.Name, "error", err)
		f.automatic.Store(false)

		return false
	}

	return true
}

func (f *FileInterface) store(file *FileData) error {
	f.mu.Lock()
	skip := slices.Contains(f.filesToSkip, file.Name)
	keep, save, dir := f.keepFiles, f.saveToDisk, f.savePath
	if !skip && keep {
		f.files = append(f.files, *file)
	}
	f.mu.Unlock()

	if skip {
		f.logger.Debug("file skipped", "file", file.Name)
		return nil
	}
	if !save {
		return nil
	}

	switch file.Name {
	case "", ".", "..":
		return fmt.Errorf("%w: file name %q", ErrInvalidTransfer, file.Name)
	}

	return os.WriteFile(filepath.Join(dir, file.Name), file.Data, 0o644)
}
