package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)
	RegisterEnumValidation(validate, translator, "color", "RED", "BLUE")

	type sample struct {
		Name  string `json:"name" validate:"required,notblank"`
		GPS   string `json:"gps" validate:"omitempty,gps"`
		Color string `json:"color" validate:"omitempty,color"`
	}

	tests := []struct {
		name    string
		obj     sample
		wantErr map[string]string
	}{
		{name: "valid", obj: sample{Name: "Bus", GPS: "-1.29,36.82", Color: "RED"}},
		{name: "required", obj: sample{}, wantErr: map[string]string{"name": "this field is required"}},
		{name: "blank", obj: sample{Name: "   "}, wantErr: map[string]string{"name": "this field cannot be blank"}},
		{
			name: "bad gps", obj: sample{Name: "Bus", GPS: "north"},
			wantErr: map[string]string{"gps": "gps must be formatted as \"latitude,longitude\""},
		},
		{
			name: "bad enum", obj: sample{Name: "Bus", Color: "GREEN"},
			wantErr: map[string]string{"color": "color must be one of RED, BLUE"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.obj)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			got := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tt.wantErr, got)
		})
	}
}
