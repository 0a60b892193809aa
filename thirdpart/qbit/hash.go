package qbit

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/bencode"
)

// ComputeTorrentHash computes a .torrent file's info-hash by bencoding
// its "info" dictionary and taking the SHA-1 digest, the same algorithm
// BitTorrent clients use to derive the info-hash. Nothing in this module
// calls it outside its tests; the manual download path takes its hash from
// the request or the magnet link only.
func ComputeTorrentHash(data []byte) (string, error) {
	var torrent map[string]interface{}
	if err := bencode.NewDecoder(bytes.NewReader(data)).Decode(&torrent); err != nil {
		return "", fmt.Errorf("decoding torrent file: %w", err)
	}
	info, ok := torrent["info"]
	if !ok {
		return "", fmt.Errorf("torrent file has no info dictionary")
	}
	infoEncoded, err := bencode.EncodeString(info)
	if err != nil {
		return "", fmt.Errorf("encoding info dictionary: %w", err)
	}
	sum := sha1.Sum([]byte(infoEncoded))
	return hex.EncodeToString(sum[:]), nil
}

// ComputeTorrentHashWithPath reads path and computes its info-hash.
func ComputeTorrentHashWithPath(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading torrent file: %w", err)
	}
	return ComputeTorrentHash(data)
}
