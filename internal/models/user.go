package models

type Role string // Роль участника площадки

const (
	Buyer  Role = "buyer"
	Seller Role = "seller"
	Admin  Role = "admin"
)

// User - участник площадки из справочника пользователей.
type User struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
