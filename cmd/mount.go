package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/voidreamer/maya-usd-author/internal/editor"
	stagefuse "github.com/voidreamer/maya-usd-author/internal/fs"
	"github.com/voidreamer/maya-usd-author/internal/nfsmount"
)

var (
	mountNFS      bool
	mountWritable bool
	mountControl  string
)

func init() {
	mountCmd.Flags().BoolVar(&mountNFS, "nfs", false, "serve over NFS instead of FUSE")
	mountCmd.Flags().BoolVar(&mountWritable, "writable", false, "allow writing _stage.usda back through the mount (NFS only)")
	mountCmd.Flags().StringVar(&mountControl, "control", "", "control block file; bumps by external writers reload the stage")
	rootCmd.AddCommand(mountCmd)
}

var mountCmd = &cobra.Command{
	Use:   "mount <mountpoint>",
	Short: "Mount the stage as a filesystem",
	Long: `Project the stage hierarchy at a mountpoint: one directory per prim,
with _info, _attributes, _primvars and _variants JSON files inside,
and the full stage text at _stage.usda in the root.

The default FUSE mount is read-only. With --nfs the stage is served
over local NFS; adding --writable lets a client overwrite _stage.usda,
which replaces the stage content and saves it (rejected text leaves
the stage untouched and reports through the root _status file).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountPoint := args[0]

		ed, err := openEditor()
		if err != nil {
			return err
		}
		defer func() { _ = ed.Close() }()

		if mountControl != "" {
			if err := ed.AttachControl(mountControl); err != nil {
				return err
			}
			stop := make(chan struct{})
			defer close(stop)
			go pollExternal(ed, stop)
		}

		if mountNFS {
			return runNFSMount(ed, mountPoint)
		}
		if mountWritable {
			return fmt.Errorf("--writable requires --nfs")
		}
		return runFUSEMount(ed, mountPoint)
	},
}

// runFUSEMount hosts the read-only FUSE projection. Mount blocks until
// the filesystem is unmounted.
func runFUSEMount(ed *editor.Editor, mountPoint string) error {
	stageFS := stagefuse.NewStageFS(ed.Reader(), ed.ExportText)
	host := fuse.NewFileSystemHost(stageFS)

	fmt.Printf("Mounting stage at %s (FUSE, read-only)...\n", mountPoint)

	opts := []string{
		"-o", "ro",
		"-o", fmt.Sprintf("uid=%d", os.Getuid()),
		"-o", fmt.Sprintf("gid=%d", os.Getgid()),
	}
	if !host.Mount(mountPoint, opts) {
		return fmt.Errorf("mount failed")
	}
	return nil
}

// runNFSMount serves the stage over local NFS and mounts it, then
// waits for an interrupt to unmount and stop the server.
func runNFSMount(ed *editor.Editor, mountPoint string) error {
	stageFS := nfsmount.NewStageFS(ed.Reader(), ed.ExportText)
	if mountWritable {
		stageFS.SetWriteBack(func(name string, content []byte) error {
			if res := ed.ReplaceFromText(string(content)); !res.OK {
				return fmt.Errorf("%s", res.Message)
			}
			if res := ed.Save(); !res.OK {
				return fmt.Errorf("%s", res.Message)
			}
			return nil
		})
	}

	srv, err := nfsmount.NewServer(stageFS)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if err := nfsmount.Mount(srv.Port(), mountPoint, mountWritable); err != nil {
		return err
	}
	fmt.Printf("Mounted stage at %s (NFS port %d, writable=%v). Ctrl-C to unmount.\n",
		mountPoint, srv.Port(), mountWritable)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Printf("Unmounting %s...\n", mountPoint)
	return nfsmount.Unmount(mountPoint)
}

// pollExternal reloads the stage when an external writer bumps the
// attached control block. Mount readers pick up the new content on
// their next read.
func pollExternal(ed *editor.Editor, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := ed.CheckExternal(); err != nil {
				logrus.WithField("component", "cmd").WithError(err).Warn("external reload failed")
			}
		}
	}
}
