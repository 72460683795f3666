package lang

import "testing"

func TestDetectEmptyDefaultsToEnglish(t *testing.T) {
	if got := Detect(""); got != "en" {
		t.Errorf("got %q", got)
	}
}

func TestDetectEnglish(t *testing.T) {
	text := "This agreement is entered into by and between the parties named below. " +
		"The contractor shall deliver all services described in the attached statement of work."
	if got := Detect(text); got != "en" {
		t.Errorf("got %q", got)
	}
}

func TestDetectSpanish(t *testing.T) {
	text := "Este contrato se celebra entre las partes mencionadas a continuación. " +
		"El contratista deberá entregar todos los servicios descritos en el documento adjunto, " +
		"incluyendo los informes mensuales y las facturas correspondientes a cada periodo."
	if got := Detect(text); got != "es" {
		t.Errorf("got %q", got)
	}
}

func TestDetectGarbageDefaultsToEnglish(t *testing.T) {
	if got := Detect("\x00\x01\x02 1234 ???"); got != "en" {
		t.Errorf("got %q", got)
	}
}
