package validator

import "testing"

type signup struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,strongpassword"`
}

func TestStrongPassword(t *testing.T) {
	v := New()
	cases := map[string]bool{
		"Str0ng!pass": true,
		"weakpass":    false,
		"NoDigits!!":  false,
		"n0upper!!":   false,
		"Sh0rt!":      false,
	}
	for password, ok := range cases {
		err := v.Var(password, "strongpassword")
		if (err == nil) != ok {
			t.Fatalf("password %q: expected valid=%v, got err=%v", password, ok, err)
		}
	}
}

func TestFieldErrorsFlattensTags(t *testing.T) {
	v := New()
	err := v.Struct(signup{Email: "not-an-email", Password: "weak"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	fields := FieldErrors(err)
	if fields["email"] != "email" || fields["password"] != "strongpassword" {
		t.Fatalf("unexpected field errors %#v", fields)
	}
}
