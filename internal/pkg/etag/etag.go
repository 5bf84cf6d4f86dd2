// Package etag converte a versão inteira das entidades em uma tag opaca (ETag) e de volta
// em uma pré-condição verificável. O cliente nunca vê o número da versão.
package etag

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	apperror "laststock/internal/errors"
)

// digestLen é o tamanho do hash BLAKE2b-256; em base64url sem padding ocupa 43 caracteres.
const digestLen = blake2b.Size256

// Codec gera e interpreta tags com BLAKE2b-256 chaveado pelo segredo da configuração.
type Codec struct {
	secret []byte
}

// NewCodec cria um codec; blake2b aceita chaves de até 64 bytes.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("segredo de ETag vazio")
	}
	if len(secret) > blake2b.Size {
		return nil, fmt.Errorf("segredo de ETag maior que %d bytes", blake2b.Size)
	}
	return &Codec{secret: []byte(secret)}, nil
}

func (c *Codec) digest(version int) []byte {
	// NewXXX só falha com chave acima de 64 bytes, já barrada em NewCodec.
	h, _ := blake2b.New256(c.secret)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(version))
	h.Write(buf[:])
	return h.Sum(nil)
}

// Encode devolve a tag entre aspas, pronta para o header ETag.
func (c *Codec) Encode(version int) string {
	return `"` + base64.RawURLEncoding.EncodeToString(c.digest(version)) + `"`
}

// Decode valida o formato da tag recebida em If-Match e devolve a pré-condição.
// Aceita a forma fraca W/"..." por tolerância a proxies.
func (c *Codec) Decode(tag string) (Precondition, error) {
	t := strings.TrimSpace(tag)
	t = strings.TrimPrefix(t, "W/")
	if len(t) < 2 || t[0] != '"' || t[len(t)-1] != '"' {
		return Precondition{}, apperror.NewValidationError("ETag malformada: esperado valor entre aspas.")
	}
	raw, err := base64.RawURLEncoding.DecodeString(t[1 : len(t)-1])
	if err != nil || len(raw) != digestLen {
		return Precondition{}, apperror.NewValidationError("ETag malformada.")
	}
	return Precondition{codec: c, digest: raw}, nil
}

// Precondition é uma tag decodificada, comparável a uma versão concreta.
type Precondition struct {
	codec  *Codec
	digest []byte
}

// Matches informa se a tag corresponde à versão. Comparação em tempo constante.
func (p Precondition) Matches(version int) bool {
	if p.codec == nil {
		return false
	}
	return subtle.ConstantTimeCompare(p.digest, p.codec.digest(version)) == 1
}

// Check devolve ConcurrencyError quando a tag não corresponde à versão atual.
// Uma pré-condição nil significa "sem If-Match" e sempre passa.
func Check(p *Precondition, version int) error {
	if p == nil || p.Matches(version) {
		return nil
	}
	return apperror.NewConcurrencyError("A versão informada (If-Match) está desatualizada.")
}
