package classifier

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// HashImage returns the hex sha256 of the dimensions and samples of img,
// so two frames hash equal exactly when Equal reports true.
func HashImage(img *Image) string {
	hasher := sha256.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(img.width))
	binary.BigEndian.PutUint32(dims[4:], uint32(img.height))
	hasher.Write(dims[:])
	hasher.Write(img.pix)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// HashBytes returns the hex sha256 of data.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
