package service

// MaxFieldLength открывает предел длины текста для тестов усечения.
const MaxFieldLength = maxFieldLength

// SetRandIntn подменяет источник случайности селектора для детерминированных
// тестов случайной ротации.
func (s *WriterSelector) SetRandIntn(fn func(n int) int) {
	s.intn = fn
}
