package fetch

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"seller-report-lab/internal/spapi"
)

const previewLen = 800

// DecodeDocument turns raw downloaded bytes into plaintext report content:
// decrypt when the document carries encryption details, then decompress
// when compression is declared or the gzip signature is present anyway
// (upstream sometimes omits the flag on gzipped documents).
func DecodeDocument(raw []byte, doc *spapi.ReportDocument) ([]byte, error) {
	content := raw

	if doc.EncryptionDetails != nil {
		decrypted, err := decryptAESCBC(content, doc.EncryptionDetails)
		if err != nil {
			return nil, &DecodeError{Stage: "decrypt", Preview: preview(content), Err: err}
		}
		content = decrypted
	}

	if alg := strings.ToUpper(doc.CompressionAlgorithm); alg != "" {
		if alg != "GZIP" {
			return nil, &DecodeError{
				Stage:   "decompress",
				Preview: preview(content),
				Err:     fmt.Errorf("unsupported compression algorithm %q", doc.CompressionAlgorithm),
			}
		}
		inflated, err := gunzip(content)
		if err != nil {
			return nil, &DecodeError{Stage: "decompress", Preview: preview(content), Err: err}
		}
		content = inflated
	}

	if isGzip(content) {
		inflated, err := gunzip(content)
		if err != nil {
			return nil, &DecodeError{Stage: "decompress", Preview: preview(content), Err: err}
		}
		content = inflated
	}

	return content, nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate gzip stream: %w", err)
	}
	return out, nil
}

// decryptAESCBC decrypts AES-CBC content with PKCS7 padding.
func decryptAESCBC(data []byte, details *spapi.EncryptionDetails) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(details.Key)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(details.InitializationVector)
	if err != nil {
		return nil, fmt.Errorf("decode initialization vector: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("initialization vector length %d != block size %d", len(iv), block.BlockSize())
	}
	if len(data) == 0 || len(data)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of block size", len(data))
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	return stripPKCS7(plain, block.BlockSize())
}

func stripPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	pad := int(data[len(data)-1])
	if pad < 1 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-pad], nil
}

// preview returns a bounded, printable prefix for diagnostics.
func preview(data []byte) string {
	if len(data) > previewLen {
		data = data[:previewLen]
	}
	return string(data)
}
