package service

import "golang.org/x/crypto/bcrypt"

// PasswordHasher encapsula el hash unidireccional de contraseñas con bcrypt.
// El costo es adaptativo: subirlo encarece ataques offline sin tocar hashes
// ya almacenados.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher crea un hasher con el costo dado; valores fuera de rango
// caen al costo por defecto de bcrypt.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{cost: cost}
}

// Hash deriva un hash salado del texto plano. Solo falla por agotamiento de
// recursos del transform, nunca por el contenido de la entrada.
func (h PasswordHasher) Hash(plaintext string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// Verify compara en tiempo constante el texto plano contra un hash almacenado.
// Devuelve false ante cualquier hash malformado o que no coincida.
func (h PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
