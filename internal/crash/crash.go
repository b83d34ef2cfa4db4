/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


// Package crash turns a panic into a crash report and an autosave of the
// workspace settings.
package crash

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "vocabgrid/internal/log"
	"vocabgrid/internal/storage"
	"vocabgrid/internal/telemetry"
	"vocabgrid/internal/version"
)

// Test hooks.
var (
	exitFn = os.Exit
	// stderr receives the user-facing notice; os.Stderr when nil.
	stderr   io.Writer
	exitCode = 2
)

// report is what gets written to crash-<stamp>.log and uploaded.
type report struct {
	at    time.Time
	value any
	stack []byte
	root  string
}

func (r report) bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintln(&b, "Vocab Grid Studio Crash Report")
	fmt.Fprintf(&b, "Timestamp: %s\n", r.at.Format(time.RFC3339))
	fmt.Fprintf(&b, "Version: %s\n", version.String())
	fmt.Fprintf(&b, "OS/Arch: %s/%s (%s)\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	if r.root != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", r.root)
		fmt.Fprintf(&b, "Settings: %s\n", filepath.Join(r.root, storage.SettingsFileName))
	}
	fmt.Fprintf(&b, "\nPanic: %v\n\nStack:\n%s\n", r.value, r.stack)
	return b.Bytes()
}

// dir is the workspace backups folder, or the temp dir without a workspace.
func (r report) dir() string {
	if r.root == "" {
		return os.TempDir()
	}
	return filepath.Join(r.root, storage.BackupsDirName)
}

// Recover must be deferred directly: defer crash.Recover(ws). On a panic it
// logs the stack, writes a report, autosaves ws when given, tells the user
// where the report went and exits with status 2.
func Recover(ws *storage.Workspace) {
	v := recover()
	if v == nil {
		return
	}
	l := applog.WithComponent("crash")
	rep := report{at: time.Now(), value: v, stack: debug.Stack()}
	if ws != nil {
		rep.root = ws.Root
	}
	l.Error("panic recovered", slog.Any("panic", v), slog.String("stack", string(rep.stack)))

	body := rep.bytes()
	path, err := save(rep, body)
	if err != nil {
		l.Error("crash report not written", slog.String("path", path), slog.Any("err", err))
	}
	telemetry.UploadCrash(body)

	if ws != nil {
		if snap, err := storage.AutosaveCrashSnapshot(ws); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", snap))
		}
	}

	out := stderr
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "vocabgrid crashed (%s, %s/%s).\nA crash report was saved to: %s\n",
		version.String(), runtime.GOOS, runtime.GOARCH, path)
	exitFn(exitCode)
}

func save(rep report, body []byte) (string, error) {
	dir := rep.dir()
	path := filepath.Join(dir, "crash-"+rep.at.Format("20060102-150405")+".log")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return path, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return path, err
	}
	return path, f.Close()
}
