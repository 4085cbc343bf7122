package domain

import "time"

// User es el registro de identidad persistido. El email es la clave natural
// y es único; PasswordHash siempre contiene la salida del hasher, nunca la
// contraseña en claro. PasswordResetCode queda vacío salvo que exista un
// reset pendiente (a lo sumo un código activo por usuario).
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	PasswordHash      string    `json:"-"`
	PasswordResetCode string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PublicUser es la proyección del usuario que cruza el límite del servicio:
// nunca incluye el hash ni el código de reset.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Public devuelve la vista del usuario sin campos de credenciales.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}
