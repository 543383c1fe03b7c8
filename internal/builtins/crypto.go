package builtins

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"hash"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"
	lua "github.com/yuin/gopher-lua"
)

// registerCrypto installs crypto.jwt_sign/hash/hmac/random.
func registerCrypto(deps Deps) {
	tbl := newModule(deps.L, map[string]lua.LGFunction{
		"jwt_sign": cryptoJWTSign,
		"hash":     cryptoHash,
		"hmac":     cryptoHMAC,
		"random":   cryptoRandom,
	})
	deps.L.SetGlobal("crypto", tbl)
}

var jwtSigningMethods = map[string]jwt.SigningMethod{
	"RS256": jwt.SigningMethodRS256,
	"RS384": jwt.SigningMethodRS384,
	"RS512": jwt.SigningMethodRS512,
}

func cryptoJWTSign(L *lua.LState) int {
	claimsTbl := L.CheckTable(1)
	pemStr := L.CheckString(2)
	algorithm := L.OptString(3, "RS256")
	opts := L.OptTable(4, L.NewTable())

	method, ok := jwtSigningMethods[strings.ToUpper(algorithm)]
	if !ok {
		L.RaiseError("crypto.jwt_sign: unsupported algorithm %q", algorithm)
		return 0
	}

	claimsGo, err := ToGo(claimsTbl)
	if err != nil {
		L.RaiseError("crypto.jwt_sign: %s", err.Error())
		return 0
	}
	claimsMap, ok := claimsGo.(map[string]any)
	if !ok {
		L.RaiseError("crypto.jwt_sign: claims must be a table")
		return 0
	}

	pemBytes := []byte(pemStr)
	key, err := parseRSAPrivateKeyPEM(pemBytes)
	zeroBytes(pemBytes)
	if err != nil {
		L.RaiseError("crypto.jwt_sign: %s", err.Error())
		return 0
	}

	claims := jwt.MapClaims(claimsMap)
	token := jwt.NewWithClaims(method, claims)
	if kid, ok := opts.RawGetString("kid").(lua.LString); ok && kid != "" {
		token.Header["kid"] = string(kid)
	}

	signed, err := token.SignedString(key)
	if err != nil {
		L.RaiseError("crypto.jwt_sign: %s", err.Error())
		return 0
	}
	L.Push(lua.LString(signed))
	return 1
}

// parseRSAPrivateKeyPEM accepts PKCS1 ("RSA PRIVATE KEY") and PKCS8
// ("PRIVATE KEY") encodings, the two shapes real deployments hand around.
func parseRSAPrivateKeyPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid PEM key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("invalid PEM key: not an RSA key")
	}
	return key, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// hashAlgorithms is the explicitly enumerated set of algorithms both
// crypto.hash and crypto.hmac support.
var hashAlgorithms = map[string]func() hash.Hash{
	"sha224":   sha256.New224,
	"sha256":   sha256.New,
	"sha384":   sha512.New384,
	"sha512":   sha512.New,
	"sha3-224": sha3.New224,
	"sha3-256": sha3.New256,
	"sha3-384": sha3.New384,
	"sha3-512": sha3.New512,
}

func resolveHash(name string) (func() hash.Hash, error) {
	newHash, ok := hashAlgorithms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported hash algorithm %q", name)
	}
	return newHash, nil
}

func cryptoHash(L *lua.LState) int {
	input := L.CheckString(1)
	algorithm := L.OptString(2, "sha256")

	newHash, err := resolveHash(algorithm)
	if err != nil {
		L.RaiseError("crypto.hash: %s", err.Error())
		return 0
	}
	h := newHash()
	h.Write([]byte(input))
	L.Push(lua.LString(hex.EncodeToString(h.Sum(nil))))
	return 1
}

func cryptoHMAC(L *lua.LState) int {
	key := L.CheckString(1)
	data := L.CheckString(2)
	algorithm := L.OptString(3, "sha256")
	raw := bool(L.OptBool(4, false))

	newHash, err := resolveHash(algorithm)
	if err != nil {
		L.RaiseError("crypto.hmac: %s", err.Error())
		return 0
	}

	mac := hmac.New(newHash, []byte(key))
	mac.Write([]byte(data))
	sum := mac.Sum(nil)

	if raw {
		L.Push(lua.LString(sum))
		return 1
	}
	L.Push(lua.LString(hex.EncodeToString(sum)))
	return 1
}

const randomAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func cryptoRandom(L *lua.LState) int {
	length := L.OptInt(1, 32)
	if length <= 0 {
		L.RaiseError("crypto.random: length must be a positive integer")
		return 0
	}

	out := make([]byte, length)
	idx := make([]byte, length)
	if _, err := rand.Read(idx); err != nil {
		L.RaiseError("crypto.random: %s", err.Error())
		return 0
	}
	for i, b := range idx {
		out[i] = randomAlphabet[int(b)%len(randomAlphabet)]
	}
	L.Push(lua.LString(out))
	return 1
}
