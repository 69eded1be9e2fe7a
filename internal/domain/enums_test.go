package domain

import "testing"

func TestParseCategoryKnown(t *testing.T) {
	if got := ParseCategory("Ley"); got != CategoryLaw {
		t.Fatalf("ParseCategory(Ley) = %v, want %v", got, CategoryLaw)
	}
	if got := ParseCategory("  REGLAMENTO  "); got != CategoryRegulation {
		t.Fatalf("ParseCategory(REGLAMENTO) = %v, want %v", got, CategoryRegulation)
	}
	if got := ParseCategory("Constitucion"); got != CategoryConstitution {
		t.Fatalf("ParseCategory(Constitucion) = %v, want %v", got, CategoryConstitution)
	}
	if got := ParseCategory("Ley Federal"); got != CategoryFederalLaw {
		t.Fatalf("ParseCategory(Ley Federal) = %v, want %v", got, CategoryFederalLaw)
	}
	if got := ParseCategory("Ley General"); got != CategoryGeneralLaw {
		t.Fatalf("ParseCategory(Ley General) = %v, want %v", got, CategoryGeneralLaw)
	}
	if got := ParseCategory("Ley Orgánica"); got != CategoryOrganicLaw {
		t.Fatalf("ParseCategory(Ley Orgánica) = %v, want %v", got, CategoryOrganicLaw)
	}
	if got := ParseCategory("Ley Organica"); got != CategoryOrganicLaw {
		t.Fatalf("ParseCategory(Ley Organica) = %v, want %v", got, CategoryOrganicLaw)
	}
	if got := ParseCategory("Codigo"); got != CategoryCode {
		t.Fatalf("ParseCategory(Codigo) = %v, want %v", got, CategoryCode)
	}
	if got := ParseCategory("Decreto"); got != CategoryDecree {
		t.Fatalf("ParseCategory(Decreto) = %v, want %v", got, CategoryDecree)
	}
	if got := ParseCategory("Acuerdo"); got != CategoryAgreement {
		t.Fatalf("ParseCategory(Acuerdo) = %v, want %v", got, CategoryAgreement)
	}
	if got := ParseCategory("Tratado"); got != CategoryTreaty {
		t.Fatalf("ParseCategory(Tratado) = %v, want %v", got, CategoryTreaty)
	}
	if got := ParseCategory("Convenio"); got != CategoryConvention {
		t.Fatalf("ParseCategory(Convenio) = %v, want %v", got, CategoryConvention)
	}
}

func TestParseCategoryUnknownDefaultsToLaw(t *testing.T) {
	if got := ParseCategory("no existe"); got != CategoryLaw {
		t.Fatalf("ParseCategory(unknown) = %v, want default %v", got, CategoryLaw)
	}
	if got := ParseCategory(""); got != CategoryLaw {
		t.Fatalf("ParseCategory(empty) = %v, want default %v", got, CategoryLaw)
	}
}

func TestParseScopeKnown(t *testing.T) {
	if got := ParseScope("estatal"); got != ScopeState {
		t.Fatalf("ParseScope(estatal) = %v, want %v", got, ScopeState)
	}
	if got := ParseScope("CDMX"); got != ScopeCapitalDistrict {
		t.Fatalf("ParseScope(CDMX) = %v, want %v", got, ScopeCapitalDistrict)
	}
	if got := ParseScope("Internacional"); got != ScopeInternational {
		t.Fatalf("ParseScope(Internacional) = %v, want %v", got, ScopeInternational)
	}
	if got := ParseScope("Extranjera"); got != ScopeForeign {
		t.Fatalf("ParseScope(Extranjera) = %v, want %v", got, ScopeForeign)
	}
}

func TestParseScopeDefaultsToFederal(t *testing.T) {
	if got := ParseScope("desconocido"); got != ScopeFederal {
		t.Fatalf("ParseScope(unknown) = %v, want default %v", got, ScopeFederal)
	}
	if got := ParseScope(""); got != ScopeFederal {
		t.Fatalf("ParseScope(empty) = %v, want default %v", got, ScopeFederal)
	}
}

func TestParseStatusKnown(t *testing.T) {
	if got := ParseStatus("Abrogado"); got != StatusAbrogated {
		t.Fatalf("ParseStatus(Abrogado) = %v, want %v", got, StatusAbrogated)
	}
	if got := ParseStatus("Derogado"); got != StatusDerogated {
		t.Fatalf("ParseStatus(Derogado) = %v, want %v", got, StatusDerogated)
	}
	if got := ParseStatus("Sustituida"); got != StatusReplaced {
		t.Fatalf("ParseStatus(Sustituida) = %v, want %v", got, StatusReplaced)
	}
	if got := ParseStatus("Extinta"); got != StatusExtinct {
		t.Fatalf("ParseStatus(Extinta) = %v, want %v", got, StatusExtinct)
	}
}

func TestParseStatusDefaultsToInForce(t *testing.T) {
	if got := ParseStatus("Vigente"); got != StatusInForce {
		t.Fatalf("ParseStatus(Vigente) = %v, want %v", got, StatusInForce)
	}
	if got := ParseStatus(""); got != StatusInForce {
		t.Fatalf("ParseStatus(empty) = %v, want default %v", got, StatusInForce)
	}
}
