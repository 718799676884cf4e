package ops

import (
	"strings"

	"jobgraph/internal/services"
	"jobgraph/internal/wire"
)

// IdentifierField is the generated node identifier every node exposes.
const IdentifierField = "identifier"

// Create builds Create<nodeType>. The identifier is always requested first
// so creations can be chained.
func Create(nodeType string, params wire.Fields, returns ...string) Operation {
	return Operation{
		Name:   "Create" + nodeType,
		Kind:   KindCreate,
		Params: params,
		Return: withIdentifier(returns),
	}
}

// Update builds Update<nodeType> for the node id. Unset fields in patch are
// skipped by the encoder, so only set fields reach the store.
func Update(nodeType, id string, patch wire.Fields, returns ...string) Operation {
	params := wire.Fields{{Name: IdentifierField, Value: wire.String(id)}}
	params = append(params, patch...)
	return Operation{
		Name:   "Update" + nodeType,
		Kind:   KindUpdate,
		Params: params,
		Return: withIdentifier(returns),
	}
}

// Delete builds Delete<nodeType> for the node id.
func Delete(nodeType, id string) Operation {
	return Operation{
		Name:   "Delete" + nodeType,
		Kind:   KindDelete,
		Params: wire.Fields{{Name: IdentifierField, Value: wire.String(id)}},
		Return: []string{IdentifierField},
	}
}

// Add links from and to through relation, assuming the link is absent.
func Add(relation, from, to string) Operation {
	return link(KindAdd, relation, from, to)
}

// Merge links from and to through relation, creating the link only when it
// does not already exist.
func Merge(relation, from, to string) Operation {
	return link(KindMerge, relation, from, to)
}

// Remove unlinks from and to. Removing an absent link is a no-op remotely.
func Remove(relation, from, to string) Operation {
	return link(KindRemove, relation, from, to)
}

func link(kind Kind, relation, from, to string) Operation {
	ref := func(id string) wire.Object {
		return wire.Object{{Name: IdentifierField, Value: wire.String(id)}}
	}
	return Operation{
		Name: kind.String() + relation,
		Kind: kind,
		Params: wire.Fields{
			{Name: "from", Value: ref(from)},
			{Name: "to", Value: ref(to)},
		},
		Return: []string{
			Nested("from", IdentifierField),
			Nested("to", IdentifierField),
		},
	}
}

// Query builds a read of name with the given filter.
func Query(name string, filter wire.Fields, returns ...string) Operation {
	return Operation{Name: name, Kind: KindQuery, Params: filter, Return: returns}
}

// Subscribe builds a subscription to name with the given filter.
func Subscribe(name string, filter wire.Fields, returns ...string) Operation {
	return Operation{Name: name, Kind: KindSubscribe, Params: filter, Return: returns}
}

// requireIDs takes alternating label, identifier pairs and fails on the
// first blank identifier.
func requireIDs(operation string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return services.Wrap(services.ErrMissingTemplateID, "ops", operation, pairs[i]+" is required", nil)
		}
	}
	return nil
}

func withIdentifier(returns []string) []string {
	out := make([]string, 0, len(returns)+1)
	out = append(out, IdentifierField)
	for _, field := range returns {
		if field == IdentifierField {
			continue
		}
		out = append(out, field)
	}
	return out
}
