package vclock

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed возвращается при попытке декодировать поврежденный вектор.
var ErrMalformed = errors.New("malformed version vector")

// MarshalBinary кодирует вектор в компактный формат:
// uint32 LE количество записей, затем для каждой реплики (по возрастанию id)
// uint16 LE длина id, байты id, uint64 LE счетчик.
func (v VersionVector) MarshalBinary() ([]byte, error) {
	size := 4
	for id := range v {
		if len(id) > math.MaxUint16 {
			return nil, fmt.Errorf("replica id too long: %d bytes", len(id))
		}
		size += 2 + len(id) + 8
	}

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v)))
	for _, id := range v.Replicas() {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(id)))
		buf = append(buf, id...)
		buf = binary.LittleEndian.AppendUint64(buf, v[id])
	}
	return buf, nil
}

// UnmarshalBinary декодирует вектор, записанный MarshalBinary.
// Обрезанные данные, лишние байты и повторяющиеся id считаются повреждением.
func (v *VersionVector) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: missing entry count", ErrMalformed)
	}
	count := binary.LittleEndian.Uint32(data)
	data = data[4:]

	// Каждая запись занимает минимум 10 байт
	if uint64(count)*10 > uint64(len(data)) {
		return fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrMalformed, count, len(data))
	}

	out := make(VersionVector, count)
	for i := uint32(0); i < count; i++ {
		if len(data) < 2 {
			return fmt.Errorf("%w: truncated id length at entry %d", ErrMalformed, i)
		}
		n := int(binary.LittleEndian.Uint16(data))
		data = data[2:]
		if len(data) < n+8 {
			return fmt.Errorf("%w: truncated entry %d", ErrMalformed, i)
		}
		id := string(data[:n])
		if _, dup := out[id]; dup {
			return fmt.Errorf("%w: duplicate replica %q", ErrMalformed, id)
		}
		out[id] = binary.LittleEndian.Uint64(data[n:])
		data = data[n+8:]
	}
	if len(data) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data))
	}

	*v = out
	return nil
}

// EncodeBase64 возвращает бинарное представление вектора в base64 для текстовых колонок.
func (v VersionVector) EncodeBase64() (string, error) {
	raw, err := v.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeBase64 разбирает вектор, сохраненный EncodeBase64.
func DecodeBase64(s string) (VersionVector, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	var v VersionVector
	if err := v.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return v, nil
}
