// Package dump persists the cache tiers across restarts: one snapshot file
// per tier in a versioned directory, entries framed with length and optional
// crc32 so a torn write costs single entries, never the whole file.
package dump

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/cache"
	"github.com/transac/go-offline-cache/internal/cache/model"
)

const writerBufSize = 512 * 1024

type Dumper interface {
	// Dump writes one snapshot version of every tier.
	Dump(ctx context.Context) error
	// Load restores the newest snapshot version, skipping expired entries.
	// Returns how many entries were restored.
	Load(ctx context.Context) (int, error)
	// LoadVersion restores a specific version dir, e.g. "v3".
	LoadVersion(ctx context.Context, v string) (int, error)
	// Close stops the periodic loop and writes a final snapshot.
	Close() error
}

type TierDump struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.DumpCfg
	tiers  *cache.TierSet
	clk    clock.Clock
}

func New(ctx context.Context, cfg *config.DumpCfg, tiers *cache.TierSet, clk clock.Clock) Dumper {
	if !cfg.Enabled() {
		return &NoOpDumper{}
	}
	if clk == nil {
		clk = clock.New()
	}
	ctx, cancel := context.WithCancel(ctx)
	return (&TierDump{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		tiers:  tiers,
		clk:    clk,
	}).run()
}

func (d *TierDump) Dump(ctx context.Context) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create base dump dir: %w", err)
	}

	versionDir := filepath.Join(d.cfg.Dir, fmt.Sprintf("v%d", nextVersion(d.cfg.Dir)))
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("create version dir: %w", err)
	}

	timestamp := d.clk.Now().Format("20060102T150405")
	var written, failures int

	d.tiers.Each(func(t *cache.Tier) {
		n, err := d.dumpTier(ctx, versionDir, timestamp, t)
		written += n
		if err != nil {
			failures++
			log.Error().Err(err).Str("tier", t.Name()).Msg("[dump] tier snapshot failed")
		}
	})

	if d.cfg.MaxVersions > 0 {
		rotateVersions(d.cfg.Dir, d.cfg.MaxVersions)
	}

	log.Info().
		Int("written", written).
		Int("fails", failures).
		Str("elapsed", time.Since(start).String()).
		Msg("dumping finished")

	if failures > 0 {
		return fmt.Errorf("dump finished with %d errors", failures)
	}
	return nil
}

func (d *TierDump) Load(ctx context.Context) (int, error) {
	dir := latestVersion(d.cfg.Dir)
	if dir == "" {
		return 0, fmt.Errorf("no versioned dump dirs found in %s", d.cfg.Dir)
	}
	return d.load(ctx, dir)
}

func (d *TierDump) LoadVersion(ctx context.Context, v string) (int, error) {
	return d.load(ctx, filepath.Join(d.cfg.Dir, v))
}

func (d *TierDump) Close() error {
	d.cancel()
	return d.Dump(context.Background())
}

/**
 * Private API.
 */

func (d *TierDump) run() *TierDump {
	log.Info().
		Str("dir", d.cfg.Dir).
		Str("interval", d.cfg.Interval.String()).
		Msg("snapshot loop is running")

	go func() {
		defer log.Info().Msg("snapshot loop is stopped")
		ticker := d.clk.Ticker(d.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if err := d.Dump(d.ctx); err != nil {
					log.Error().Err(err).Msg("[dump] periodic snapshot failed")
				}
			}
		}
	}()

	return d
}

func (d *TierDump) dumpTier(ctx context.Context, versionDir, timestamp string, t *cache.Tier) (int, error) {
	ext := ".dump"
	if d.cfg.Gzip {
		ext += ".gz"
	}
	name := filepath.Join(versionDir, fmt.Sprintf("%s-tier-%s-%s%s", d.cfg.Name, t.Name(), timestamp, ext))
	tmp := name + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create snapshot file: %w", err)
	}

	var (
		writer io.Writer = f
		gw     *gzip.Writer
	)
	if d.cfg.Gzip {
		gw = gzip.NewWriter(f)
		writer = gw
	}
	bw := bufio.NewWriterSize(writer, writerBufSize)

	written := 0
	var writeErr error
	t.Walk(func(e *model.Entry) bool {
		if ctx.Err() != nil {
			writeErr = ctx.Err()
			return false
		}
		data := encodeEntry(e)
		var crc uint32
		if d.cfg.Crc32Control {
			crc = crc32.ChecksumIEEE(data)
		}

		var head [8]byte
		binary.LittleEndian.PutUint32(head[0:4], uint32(len(data)))
		binary.LittleEndian.PutUint32(head[4:8], crc)
		if _, err := bw.Write(head[:]); err != nil {
			writeErr = err
			return false
		}
		if _, err := bw.Write(data); err != nil {
			writeErr = err
			return false
		}
		written++
		return true
	})

	if err := bw.Flush(); err != nil && writeErr == nil {
		writeErr = err
	}
	if gw != nil {
		if err := gw.Close(); err != nil && writeErr == nil {
			writeErr = err
		}
	}
	if err := f.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		_ = os.Remove(tmp)
		return written, writeErr
	}
	if err := os.Rename(tmp, name); err != nil {
		return written, fmt.Errorf("publish snapshot file: %w", err)
	}
	return written, nil
}

func (d *TierDump) load(ctx context.Context, dir string) (int, error) {
	start := time.Now()

	pattern := filepath.Join(dir, d.cfg.Name+"-tier-*")
	files, _ := filepath.Glob(pattern)
	files = dropTmp(files)
	if len(files) == 0 {
		return 0, fmt.Errorf("no dump files found in %s", dir)
	}
	ts := latestTimestamp(files)
	files = filterByTimestamp(files, ts)

	restored, failures := 0, 0
	for _, file := range files {
		if ctx.Err() != nil {
			return restored, ctx.Err()
		}
		tierName := tierNameFromFile(filepath.Base(file), d.cfg.Name)
		tier := d.tiers.Tier(tierName)
		if tier.Name() != tierName {
			log.Warn().Str("file", file).Msg("[load] unknown tier in snapshot, skipping")
			continue
		}
		n, err := d.loadTier(ctx, file, tier)
		restored += n
		if err != nil {
			failures++
			log.Error().Err(err).Str("file", file).Msg("[load] snapshot restore failed")
		}
	}

	log.Info().
		Int("restored", restored).
		Int("fails", failures).
		Str("elapsed", time.Since(start).String()).
		Msg("restoring dump")

	if failures > 0 {
		return restored, fmt.Errorf("load finished with %d errors", failures)
	}
	return restored, nil
}

// loadTier decodes every healthy frame and replays them oldest first so the
// tier's store order matches the pre-restart one.
func (d *TierDump) loadTier(ctx context.Context, file string, tier *cache.Tier) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(file, ".gz") {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gzr.Close()
		reader = gzr
	}

	now := d.clk.Now().UnixNano()
	maxAge := tier.MaxAge()
	var entries []*model.Entry

	br := bufio.NewReaderSize(reader, writerBufSize)
	var head [8]byte
	for {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if _, err := io.ReadFull(br, head[:]); err == io.EOF {
			break
		} else if err != nil {
			return 0, fmt.Errorf("read frame header: %w", err)
		}

		size := binary.LittleEndian.Uint32(head[0:4])
		expCRC := binary.LittleEndian.Uint32(head[4:8])
		buf := make([]byte, size)
		if _, err := io.ReadFull(br, buf); err != nil {
			return 0, fmt.Errorf("read frame body: %w", err)
		}
		if d.cfg.Crc32Control && crc32.ChecksumIEEE(buf) != expCRC {
			log.Warn().Str("file", file).Msg("[load] crc mismatch, frame skipped")
			continue
		}
		e, err := decodeEntry(buf)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("[load] frame decode failed, skipped")
			continue
		}
		if e.Expired(now, maxAge) {
			continue
		}
		entries = append(entries, e)
	}

	for i := len(entries) - 1; i >= 0; i-- {
		tier.RestoreEntry(entries[i])
	}
	return len(entries), nil
}

// nextVersion picks the next sequential version number.
func nextVersion(baseDir string) int {
	dirs, _ := filepath.Glob(filepath.Join(baseDir, "v*"))
	maxV := 0
	for _, dir := range dirs {
		name := filepath.Base(dir)
		var v int
		if _, err := fmt.Sscanf(name, "v%d", &v); err == nil && v > maxV {
			maxV = v
		}
	}
	return maxV + 1
}

// rotateVersions keeps only the newest max dirs, removes the rest.
func rotateVersions(baseDir string, max int) {
	dirs, _ := filepath.Glob(filepath.Join(baseDir, "v*"))
	if len(dirs) <= max {
		return
	}
	sortByModTime(dirs)
	for _, dir := range dirs[max:] {
		_ = os.RemoveAll(dir)
		log.Info().Msgf("[dump] removed old dump dir: %s", dir)
	}
}

// latestVersion returns the most recently modified version dir.
func latestVersion(baseDir string) string {
	dirs, _ := filepath.Glob(filepath.Join(baseDir, "v*"))
	if len(dirs) == 0 {
		return ""
	}
	sortByModTime(dirs)
	return dirs[0]
}

func sortByModTime(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		fi, _ := os.Stat(paths[i])
		fj, _ := os.Stat(paths[j])
		if fi == nil || fj == nil || fi.ModTime().Equal(fj.ModTime()) {
			return versionNum(paths[i]) > versionNum(paths[j]) // mtime ties break by version
		}
		return fi.ModTime().After(fj.ModTime())
	})
}

func versionNum(path string) int {
	var v int
	_, _ = fmt.Sscanf(filepath.Base(path), "v%d", &v)
	return v
}

// latestTimestamp picks the largest timestamp suffix among files.
func latestTimestamp(files []string) string {
	var latest string
	for _, f := range files {
		if ts := timestampFromFile(filepath.Base(f)); ts > latest {
			latest = ts
		}
	}
	return latest
}

// filterByTimestamp returns only files stamped with ts.
func filterByTimestamp(files []string, ts string) []string {
	var out []string
	for _, f := range files {
		if strings.Contains(f, ts) {
			out = append(out, f)
		}
	}
	return out
}

func dropTmp(files []string) []string {
	var out []string
	for _, f := range files {
		if !strings.HasSuffix(f, ".tmp") {
			out = append(out, f)
		}
	}
	return out
}

func timestampFromFile(base string) string {
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".dump")
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

// tierNameFromFile strips "<name>-tier-" and the "-<timestamp>" tail.
func tierNameFromFile(base, prefix string) string {
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".dump")
	base = strings.TrimPrefix(base, prefix+"-tier-")
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return base
	}
	return base[:i]
}
