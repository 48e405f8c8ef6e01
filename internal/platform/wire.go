package platform

import "clinicbook/internal/models"

// The platform is inconsistent about identifier fields: depending on the
// endpoint an entity carries "_id", "id", or both. Normalization happens
// here, at the decode boundary, so nothing downstream branches on shape.

type clinicWire struct {
	ID       string `json:"id"`
	MongoID  string `json:"_id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Address  string `json:"address"`
}

func (w clinicWire) toModel() models.Clinic {
	loc := w.Location
	if loc == "" {
		loc = w.Address
	}
	return models.Clinic{
		ID:       canonicalID(w.ID, w.MongoID),
		Name:     w.Name,
		Location: loc,
	}
}

type doctorWire struct {
	ID              string  `json:"id"`
	MongoID         string  `json:"_id"`
	Name            string  `json:"name"`
	Specialty       string  `json:"specialty"`
	Specialization  string  `json:"specialization"`
	Fee             float64 `json:"fee"`
	ConsultationFee float64 `json:"consultationFee"`
}

func (w doctorWire) toModel() models.Doctor {
	specialty := w.Specialty
	if specialty == "" {
		specialty = w.Specialization
	}
	fee := w.Fee
	if fee == 0 {
		fee = w.ConsultationFee
	}
	return models.Doctor{
		ID:        canonicalID(w.ID, w.MongoID),
		Name:      w.Name,
		Specialty: specialty,
		Fee:       fee,
	}
}

func canonicalID(id, mongoID string) string {
	if id != "" {
		return id
	}
	return mongoID
}

func clinicsFromWire(wires []clinicWire) []models.Clinic {
	out := make([]models.Clinic, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.toModel())
	}
	return out
}

func doctorsFromWire(wires []doctorWire) []models.Doctor {
	out := make([]models.Doctor, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.toModel())
	}
	return out
}
