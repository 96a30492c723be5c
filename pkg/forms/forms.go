package forms

// SimpleInput is the single-name form.
type SimpleInput struct {
	Name string `json:"name" validate:"notblank" message:"Name must not be empty."`
}

// Checkout is the delivery address entered before an order is placed.
type Checkout struct {
	Name     string `json:"name" validate:"notblank" message:"Please enter a valid name!"`
	Street   string `json:"street" validate:"notblank" message:"Please enter a valid street!"`
	City     string `json:"city" validate:"notblank" message:"Please enter a valid city!"`
	PostCode string `json:"postcode" validate:"postcode" message:"Please enter a valid post code!"`
}

// NewQuote is the form adding a quote.
type NewQuote struct {
	Author string `json:"author" validate:"notblank" message:"Please enter an author!"`
	Text   string `json:"text" validate:"notblank" message:"Please enter a quote!"`
}

// NewComment is the form adding a comment to a quote.
type NewComment struct {
	Text string `json:"text" validate:"notblank" message:"Please enter a comment!"`
}

// Auth is the sign-up and sign-in form.
type Auth struct {
	Email    string `json:"email" validate:"required,email" message:"Please enter a valid email!"`
	Password string `json:"password" validate:"min=7" message:"Password must have at least 7 characters!"`
}

// NewPassword is the change-password form.
type NewPassword struct {
	Password string `json:"password" validate:"min=7" message:"Password must have at least 7 characters!"`
}
