package backend

// User is the identity record returned by /auth/me.
type User struct {
	ID        string `json:"_id,omitempty"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Country   string `json:"country"`
	CompanyID string `json:"company_id,omitempty"`
	CafeName  string `json:"cafe_name,omitempty"`
	Role      string `json:"role,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

// Admin reports whether the identity carries the administrator role.
func (u *User) Admin() bool {
	return u != nil && (u.IsAdmin || u.Role == "admin")
}

// Company is a workplace whose cafe ratings appear in the feed once approved.
type Company struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Approved bool   `json:"approved"`
}

// Rating is one user's score for a dish on a given day.
type Rating struct {
	ID        string `json:"_id"`
	Dish      string `json:"dish"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Date      string `json:"date"`
	CafeName  string `json:"cafe_name"`
	Country   string `json:"country"`
	CompanyID string `json:"company_id,omitempty"`
}

// RatingInput is the body for POST /ranks.
type RatingInput struct {
	Date     string `json:"date"`
	Dish     string `json:"dish"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
	ImageURL string `json:"image_url"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Country  string `json:"country"`
	Company  string `json:"company"`
	CafeName string `json:"cafe_name"`
}

// TokenResponse is returned by /auth/login and /auth/register.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// ApproveRequest is the body for POST /admin/companies/approve.
type ApproveRequest struct {
	CompanyID string `json:"company_id"`
	Approved  bool   `json:"approved"`
}

// Stats maps a metric label to its value.
type Stats map[string]float64
