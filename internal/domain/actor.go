package domain

// Actor — пользователь, от имени которого выполняется операция.
// Нулевое значение соответствует гостю.
type Actor struct {
	Email string
	Admin bool
}

// Authenticated сообщает, предъявил ли пользователь действительный токен.
func (a Actor) Authenticated() bool {
	return a.Email != ""
}

// RequireAdmin возвращает ErrUnauthenticated для гостя и ErrForbidden для не-администратора.
func (a Actor) RequireAdmin() error {
	if !a.Authenticated() {
		return ErrUnauthenticated
	}
	if !a.Admin {
		return ErrForbidden
	}
	return nil
}
