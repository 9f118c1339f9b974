package pipeline

import (
	"encoding/binary"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
)

// ErrShaderNotFound is returned by ReadShader when the file cannot be opened.
var ErrShaderNotFound = errors.New("shader binary not found")

// ReadShader reads a whole SPIR-V binary and returns it as words.
func ReadShader(path string) ([]uint32, error) {
	return ReadShaderFS(nil, path)
}

// ReadShaderFS is ReadShader against fsys, or the OS file system when fsys is
// nil.
func ReadShaderFS(fsys fs.FS, path string) ([]uint32, error) {
	var data []byte
	var err error
	if fsys == nil {
		data, err = os.ReadFile(path)
	} else {
		data, err = fs.ReadFile(fsys, path)
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to open shader file %s", path), ErrShaderNotFound)
	}

	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Newf("shader file %s is %d bytes, not a whole number of SPIR-V words", path, len(data))
	}

	return bytesToBytecode(data), nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return byteCode
}
