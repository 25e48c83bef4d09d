package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// StoreOverrides es el resolver por capas de atributos de store: config base
// del store en la base de datos, más un mapa de overrides por entorno que se
// consulta en el lookup. Reemplaza al viejo parcheo dinámico de atributos.
//
// Formato del YAML:
//
//	dev:
//	  mystore:
//	    template_url: "http://localhost:3000/templates"
//	staging:
//	  mystore:
//	    default_url: "https://staging.example.com"
type StoreOverrides struct {
	byStore map[string]map[string]string
}

// LoadStoreOverrides carga los overrides del entorno dado. Un archivo
// inexistente no es error: devuelve un resolver vacío.
func LoadStoreOverrides(path, env string) (*StoreOverrides, error) {
	o := &StoreOverrides{byStore: map[string]map[string]string{}}
	if path == "" {
		return o, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return nil, err
	}
	var all map[string]map[string]map[string]string
	if err := yaml.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	if envMap, ok := all[env]; ok {
		o.byStore = envMap
	}
	return o, nil
}

// Lookup devuelve el override para (store, attribute), si existe.
func (o *StoreOverrides) Lookup(storeName, attribute string) (string, bool) {
	if o == nil {
		return "", false
	}
	attrs, ok := o.byStore[storeName]
	if !ok {
		return "", false
	}
	v, ok := attrs[attribute]
	return v, ok
}

// Empty reporta si no hay overrides cargados.
func (o *StoreOverrides) Empty() bool {
	return o == nil || len(o.byStore) == 0
}
