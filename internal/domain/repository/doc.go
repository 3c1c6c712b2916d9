// Package repository define los contratos de persistencia de horizonauth.
//
// Dos agregados:
//
//   - LocalUser: la cuenta local "<provider>_<external_id>".
//   - ExternalIdentity: el vínculo external_id → usuario local, con el
//     access token del provider, el password generado para el identity
//     service y el tenant aprovisionado.
//
// Las implementaciones viven en internal/store/adapters/{pg,sqlite}.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go; los adapters traducen las
//     violaciones de unicidad a ErrConflict
package repository
