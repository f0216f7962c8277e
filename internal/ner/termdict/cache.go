package termdict

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
)

// Cache file layout: a fixed little-endian header (magic, format
// version, field count, payload size), a JSON snapshot of the two
// lookup maps, and a trailing CRC32 of the payload. Stopwords are not
// cached; they are cheap to recompute and belong to the runtime
// configuration.
const (
	cacheMagic      uint32 = 0x42454149
	cacheVersion    uint32 = 1
	cacheHeaderSize        = 24
	cacheExt               = ".idx"
)

type cacheSnapshot struct {
	FirstToken map[string][]int       `json:"first_token"`
	FullTerms  map[string][]TermEntry `json:"full_terms"`
	Rows       int                    `json:"rows"`
}

// cachePath places the cache artifact next to the termlist, or in an
// explicitly configured directory. A remote termlist without a local
// cache directory cannot be cached, which yields "".
func cachePath(termlist, cacheDir string) string {
	if cacheDir == "" {
		if isRemote(termlist) {
			return ""
		}
		cacheDir = filepath.Dir(termlist)
	}
	return filepath.Join(cacheDir, filepath.Base(termlist)+cacheExt)
}

// writeCache atomically writes the index snapshot: to a .tmp file
// first, renamed on success.
func writeCache(path string, x *Index) error {
	payload, err := json.Marshal(cacheSnapshot{
		FirstToken: x.firstToken,
		FullTerms:  x.fullTerms,
		Rows:       x.rows,
	})
	if err != nil {
		return fmt.Errorf("marshaling index snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer f.Close()

	header := make([]byte, cacheHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], cacheMagic)
	binary.LittleEndian.PutUint32(header[4:8], cacheVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(x.nFields))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(payload)))
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("writing cache header: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("writing cache payload: %w", err)
	}
	footer := make([]byte, 4)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(payload))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing cache footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing cache file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

// readCache loads a cache file, verifying magic, version, field count
// and checksum. Any mismatch or corruption is an error; callers react
// by rebuilding from the source termlist.
func readCache(path string, nFields int, stopwords map[string]struct{}) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	payload, err := checkCacheBytes(data, nFields)
	if err != nil {
		return nil, err
	}
	var snap cacheSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("parsing cache payload: %w", err)
	}
	if snap.FirstToken == nil {
		snap.FirstToken = map[string][]int{}
	}
	if snap.FullTerms == nil {
		snap.FullTerms = map[string][]TermEntry{}
	}
	return &Index{
		firstToken: snap.FirstToken,
		fullTerms:  snap.FullTerms,
		stopwords:  stopwords,
		nFields:    nFields,
		rows:       snap.Rows,
	}, nil
}

// checkCache verifies a cache file without decoding the payload. Used
// by EnsureCache to avoid pulling a large index into memory.
func checkCache(path string, nFields int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = checkCacheBytes(data, nFields)
	return err
}

func checkCacheBytes(data []byte, nFields int) ([]byte, error) {
	if len(data) < cacheHeaderSize+4 {
		return nil, fmt.Errorf("cache file truncated: %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != cacheMagic {
		return nil, fmt.Errorf("bad cache magic %#x", magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != cacheVersion {
		return nil, fmt.Errorf("unsupported cache version %d", version)
	}
	if found := int(binary.LittleEndian.Uint32(data[8:12])); found != nFields {
		return nil, fmt.Errorf("cache built for %d fields, expected %d", found, nFields)
	}
	payloadSize := binary.LittleEndian.Uint64(data[16:24])
	if uint64(len(data)) != cacheHeaderSize+payloadSize+4 {
		return nil, fmt.Errorf("cache file truncated: %d bytes, want %d",
			len(data), cacheHeaderSize+payloadSize+4)
	}
	payload := data[cacheHeaderSize : cacheHeaderSize+payloadSize]
	checksum := binary.LittleEndian.Uint32(data[cacheHeaderSize+payloadSize:])
	if crc32.ChecksumIEEE(payload) != checksum {
		return nil, fmt.Errorf("cache checksum mismatch")
	}
	return payload, nil
}
