package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/hupe1980/clusterfs"
	"github.com/hupe1980/clusterfs/blockdev"
)

func init() {
	register("mkdrive", "<drive> <blocks>", "create a zeroed drive file", func(fs *flag.FlagSet) func(context.Context, *env, []string) error {
		noMmap := fs.Bool("no-mmap", false, "use positional I/O instead of mmap")
		return func(_ context.Context, e *env, args []string) error {
			blocks, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid block count %q", args[1])
			}
			store, err := blockdev.Create(args[0], blocks, driveOptions(e, *noMmap)...)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "%s: %d blocks of %d bytes\n", store.Path(), blocks, blockdev.BlockSize)
			return nil
		}
	})

	register("format", "<drive>", "write an empty filesystem", func(*flag.FlagSet) func(context.Context, *env, []string) error {
		return func(_ context.Context, e *env, args []string) error {
			fsys, err := clusterfs.Format(blockdev.New(args[0], driveOptions(e, false)...), fsOptions(e)...)
			if err != nil {
				return err
			}
			u := fsys.Usage()
			fmt.Fprintf(e.stdout, "formatted %s: %d data clusters of %d bytes, %d directory slots\n",
				args[0], u.FreeClusters, u.ClusterSize, u.DirectorySlots)
			return fsys.Close()
		}
	})

	register("info", "<drive>", "print geometry and occupancy", func(*flag.FlagSet) func(context.Context, *env, []string) error {
		return withFS(func(e *env, fsys *clusterfs.FS, _ []string) error {
			sb := fsys.Superblock()
			u := fsys.Usage()
			w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "store blocks\t%d\n", fsys.Store().Size())
			fmt.Fprintf(w, "bytes per sector\t%d\n", sb.BytesPerSector)
			fmt.Fprintf(w, "sectors per cluster\t%d\n", sb.SectorsPerCluster)
			fmt.Fprintf(w, "reserved sectors\t%d\n", sb.ReservedSectorCount)
			fmt.Fprintf(w, "total sectors\t%d\n", sb.TotalSectorCount)
			fmt.Fprintf(w, "clusters\t%d (%d reserved, %d used, %d free)\n", u.TotalClusters, u.ReservedClusters, u.UsedClusters, u.FreeClusters)
			fmt.Fprintf(w, "free bytes\t%d\n", u.FreeBytes())
			fmt.Fprintf(w, "directory slots\t%d (%d used)\n", u.DirectorySlots, u.UsedSlots)
			return w.Flush()
		})
	})

	register("ls", "<drive>", "list files", func(fs *flag.FlagSet) func(context.Context, *env, []string) error {
		long := fs.Bool("l", false, "show cluster chains")
		return withFS(func(e *env, fsys *clusterfs.FS, _ []string) error {
			infos, err := fsys.ReadDir()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
			for _, fi := range infos {
				if *long {
					fmt.Fprintf(w, "%s\t%d\t%v\n", fi.Name, fi.Size, fi.Chain)
				} else {
					fmt.Fprintf(w, "%s\t%d\n", fi.Name, fi.Size)
				}
			}
			return w.Flush()
		})
	})

	register("put", "<drive> <name> [file]", "store file (or stdin) as name", func(*flag.FlagSet) func(context.Context, *env, []string) error {
		return withFS(func(e *env, fsys *clusterfs.FS, args []string) error {
			var src io.Reader = e.stdin
			if len(args) == 3 {
				f, err := os.Open(args[2])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				src = f
			}
			data, err := io.ReadAll(src)
			if err != nil {
				return err
			}

			f, err := fsys.OpenFile(args[1])
			if err != nil {
				return err
			}
			if err := f.Truncate(0); err != nil {
				_ = f.Close()
				return err
			}
			if _, err := f.Write(data); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		})
	})

	register("cat", "<drive> <name>", "print a file", func(*flag.FlagSet) func(context.Context, *env, []string) error {
		return withFS(func(e *env, fsys *clusterfs.FS, args []string) error {
			if _, err := fsys.Stat(args[1]); err != nil {
				return err
			}
			f, err := fsys.OpenFile(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			_, err = io.Copy(e.stdout, f)
			return err
		})
	})

	register("rm", "<drive> <name>", "delete a file", func(*flag.FlagSet) func(context.Context, *env, []string) error {
		return withFS(func(_ *env, fsys *clusterfs.FS, args []string) error {
			return fsys.Remove(args[1])
		})
	})

	register("truncate", "<drive> <name> <size>", "resize a file, zero-filling growth", func(*flag.FlagSet) func(context.Context, *env, []string) error {
		return withFS(func(_ *env, fsys *clusterfs.FS, args []string) error {
			size, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid size %q", args[2])
			}
			if _, err := fsys.Stat(args[1]); err != nil {
				return err
			}
			f, err := fsys.OpenFile(args[1])
			if err != nil {
				return err
			}
			if err := f.Truncate(size); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		})
	})

	register("defrag", "<drive>", "free clusters no file reaches", func(*flag.FlagSet) func(context.Context, *env, []string) error {
		return withFS(func(e *env, fsys *clusterfs.FS, _ []string) error {
			freed, err := fsys.Defragment()
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "freed %d clusters\n", freed)
			return nil
		})
	})

	register("check", "<drive>", "verify the allocation and directory tables", func(*flag.FlagSet) func(context.Context, *env, []string) error {
		return withFS(func(e *env, fsys *clusterfs.FS, _ []string) error {
			r, err := fsys.Check()
			if err != nil {
				return err
			}
			for _, c := range r.BadReserved {
				fmt.Fprintf(e.stdout, "cluster %d: not reserved\n", c)
			}
			for _, c := range r.CrossLinked {
				fmt.Fprintf(e.stdout, "cluster %d: cross-linked\n", c)
			}
			for _, p := range r.BrokenChains {
				fmt.Fprintf(e.stdout, "broken chain: %s\n", p)
			}
			for _, c := range r.Orphans {
				fmt.Fprintf(e.stdout, "cluster %d: orphaned\n", c)
			}
			for _, n := range r.Oversized {
				fmt.Fprintf(e.stdout, "%s: size exceeds chain\n", n)
			}
			for _, n := range r.Duplicates {
				fmt.Fprintf(e.stdout, "%s: duplicate name\n", n)
			}
			if !r.OK() {
				return fmt.Errorf("%d problems found", r.Problems())
			}
			fmt.Fprintln(e.stdout, "ok")
			return nil
		})
	})

	register("block", "<drive> <id>", "hex dump one block", func(fs *flag.FlagSet) func(context.Context, *env, []string) error {
		raw := fs.Bool("raw", false, "write the raw block bytes")
		return func(_ context.Context, e *env, args []string) error {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid block id %q", args[1])
			}
			store, err := openDrive(e, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			b, err := store.ReadBlock(id)
			if err != nil {
				return err
			}
			if *raw {
				_, err = e.stdout.Write(b)
				return err
			}
			_, err = io.WriteString(e.stdout, hex.Dump(b))
			return err
		}
	})
}

func driveOptions(e *env, noMmap bool) []func(o *blockdev.Options) {
	opts := []func(o *blockdev.Options){blockdev.WithLogger(e.logger.Logger)}
	if noMmap {
		opts = append(opts, blockdev.WithoutMmap())
	}
	return opts
}

func fsOptions(e *env) []clusterfs.Option {
	opts := []clusterfs.Option{clusterfs.WithLogger(e.logger)}
	if e.cacheKiB > 0 {
		opts = append(opts, clusterfs.WithBlockCache(e.cacheKiB*1024))
	}
	return opts
}

// openDrive opens an existing drive file.
func openDrive(e *env, path string) (*blockdev.FileStore, error) {
	store := blockdev.New(path, driveOptions(e, false)...)
	if err := store.Open(); err != nil {
		return nil, err
	}
	if !store.IsOpen() {
		return nil, fmt.Errorf("%s: %w", path, blockdev.ErrNotOpen)
	}
	return store, nil
}

// withFS mounts args[0] for the duration of fn.
func withFS(fn func(e *env, fsys *clusterfs.FS, args []string) error) func(context.Context, *env, []string) error {
	return func(_ context.Context, e *env, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return err
		}
		fsys, err := clusterfs.Mount(blockdev.New(args[0], driveOptions(e, false)...), fsOptions(e)...)
		if err != nil {
			return err
		}
		return errors.Join(fn(e, fsys, args), fsys.Close())
	}
}
