package dto

type RegisterRequestDTO struct {
	Login      string `json:"login" example:"player1"`
	Password   string `json:"password" example:"secret123"`
	ReferrerID *int   `json:"referrer_id,omitempty" example:"42"`
}

type RegisterResponseDTO struct {
	Message   string `json:"message"`
	AccountID int    `json:"account_id" example:"43"`
}

type LoginRequestDTO struct {
	Login    string `json:"login" example:"player1"`
	Password string `json:"password" example:"secret123"`
}

type LoginResponseDTO struct {
	Message string `json:"message"`
}
