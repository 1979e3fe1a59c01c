// Package statusicon helps event listeners splice a server-list favicon
// into a StatusRequestEvent's status JSON. The core never calls this
// package; it exists so an embedding listener has a ready-made way to
// exercise the mutation point spec §4.3/§4.5 grant over the status
// response, the way BungeeCord/Velocity plugins commonly do.
package statusicon

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"image/png"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/nfnt/resize"
)

// iconSize is the side length Minecraft's server list expects.
const iconSize = 64

// cacheSize bounds the number of distinct encoded icons kept in memory;
// resampling is the expensive part, so this is sized for "a handful of
// distinct server icons", not "one per player".
const cacheSize = 64

var (
	cacheMu sync.Mutex
	cache   = lru.New(cacheSize)
)

// Encode resizes a PNG image to the server-list icon size and returns it as
// a data URI suitable for the favicon field of a status JSON document.
// Repeated calls with byte-identical input are served from an in-process
// LRU cache rather than re-run through the resampler.
func Encode(pngBytes []byte) (string, error) {
	key := fmt.Sprintf("%x", sha1.Sum(pngBytes))

	cacheMu.Lock()
	if v, ok := cache.Get(key); ok {
		cacheMu.Unlock()
		return v.(string), nil
	}
	cacheMu.Unlock()

	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return "", fmt.Errorf("statusicon: decode: %w", err)
	}

	resized := resize.Resize(iconSize, iconSize, img, resize.Lanczos3)

	out := new(bytes.Buffer)
	if err := png.Encode(out, resized); err != nil {
		return "", fmt.Errorf("statusicon: encode: %w", err)
	}

	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(out.Bytes())

	cacheMu.Lock()
	cache.Add(key, dataURI)
	cacheMu.Unlock()

	return dataURI, nil
}
