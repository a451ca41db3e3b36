package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/agentic-research/remfs/internal/config"
	"github.com/agentic-research/remfs/internal/index"
	"github.com/agentic-research/remfs/internal/nfsbridge"
	"github.com/agentic-research/remfs/internal/resolver"
	"github.com/agentic-research/remfs/internal/store"
	"github.com/agentic-research/remfs/internal/vfs"
)

// defaultBackend mirrors cmd/mount.go's platform default: cgofuse
// everywhere except darwin, where NFS avoids the FUSE kext dependency.
func defaultBackend() string {
	if runtime.GOOS == "darwin" {
		return "nfs"
	}
	return "fuse"
}

// runMount scans the source store, builds the name index and resolver,
// then hands the pair to whichever mount backend was selected.
func runMount(cmd *cobra.Command, mountPoint string) error {
	cfgPath := configPath
	explicit := cmd.Flags().Changed("config")
	if cfgPath == "" {
		if p, err := config.DefaultPath(); err == nil {
			cfgPath = p
		}
	}
	cfg, err := config.Load(cfgPath, explicit)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("source") || cfg.SourceDir == "" {
		cfg.SourceDir = sourceDir
	}
	if cmd.Flags().Changed("backend") || cfg.Backend == "" {
		cfg.Backend = backend
	}

	info, err := os.Stat(cfg.SourceDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("source %q is not a directory", cfg.SourceDir)
	}

	fs := osfs.New(cfg.SourceDir)
	files, err := store.New(fs).Scan()
	if err != nil {
		return fmt.Errorf("scanning store: %w", err)
	}

	idx, err := index.Build(files, cfg.SourceDir, osExister{})
	if err != nil {
		return fmt.Errorf("building name index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	r := resolver.New(idx, cfg.SourceDir)

	switch cfg.Backend {
	case string(config.BackendFUSE):
		return mountFUSE(idx, r, cfg.SourceDir, mountPoint)
	case string(config.BackendNFS):
		return mountNFS(idx, r, cfg.SourceDir, mountPoint)
	default:
		return fmt.Errorf("unknown backend %q (use fuse or nfs)", cfg.Backend)
	}
}

// osExister implements index.Exister against real filesystem paths — the
// sourceDir NameIndex.Build receives is a host path (relative ones resolve
// against the working directory), not a path relative to the
// billy.Filesystem used for sidecar scanning.
type osExister struct{}

func (osExister) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mountFUSE mounts via cgofuse, the primary backend on Linux and Windows.
func mountFUSE(idx *index.NameIndex, r *resolver.Resolver, sourceDir, mountPoint string) error {
	fsys := vfs.New(idx, r, sourceDir)
	host := fuse.NewFileSystemHost(fsys)
	host.SetCapReaddirPlus(true)

	fmt.Printf("Mounting remfs at %s (using cgofuse)...\n", mountPoint)

	opts := []string{
		"-o", fmt.Sprintf("uid=%d", os.Getuid()),
		"-o", fmt.Sprintf("gid=%d", os.Getgid()),
		"-o", "fsname=remfs",
		"-o", "subtype=remfs",
		"-o", "ro",
	}

	if !host.Mount(mountPoint, opts) {
		return fmt.Errorf("mount failed")
	}
	return nil
}

// mountNFS starts a loopback NFS server backed by nfsbridge.RemfsFS and
// mounts it, the darwin-default backend.
func mountNFS(idx *index.NameIndex, r *resolver.Resolver, sourceDir, mountPoint string) error {
	bridge := nfsbridge.New(idx, r, sourceDir)

	srv, err := nfsbridge.NewServer(bridge)
	if err != nil {
		return fmt.Errorf("start NFS server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	fmt.Printf("Mounting remfs at %s (NFS on localhost:%d)...\n", mountPoint, srv.Port())
	if err := nfsbridge.Mount(srv.Port(), mountPoint, false); err != nil {
		return err
	}
	fmt.Printf("Mounted. Press Ctrl-C to unmount.\n")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Printf("\nUnmounting %s...\n", mountPoint)
	if err := nfsbridge.Unmount(mountPoint); err != nil {
		fmt.Printf("Warning: unmount failed: %v\n", err)
		fmt.Printf("Run manually: sudo umount %s\n", mountPoint)
	}
	return nil
}
