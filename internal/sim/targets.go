package sim

// Qualified names of the colony's host operations.
const (
	DoIceMelting              = "Verse.FreezeManager:DoIceMelting"
	SpawnPos                  = "RimWorld.CompRitualEffect_IntervalSpawnCircle:SpawnPos"
	TryIssueJobPackage        = "Verse.AI.ThinkNode_PrioritySorter:TryIssueJobPackage"
	SpawnFleck                = "RimWorld.RitualVisualEffectComp:SpawnFleck"
	OnIntervalPassed          = "Verse.HediffGiver_RandomAgeCurved:OnIntervalPassed"
	UpdateAllDuties           = "RimWorld.LordToil_Ritual:UpdateAllDuties"
	DropUnusedInventory       = "PickUpAndHaul.HarmonyPatches:DropUnusedInventory_PostFix"
	PotentialWorkThingsGlobal = "PickUpAndHaul.WorkGiver_HaulToInventory:PotentialWorkThingsGlobal"
)

// Natives called by the PotentialWorkThingsGlobal program.
const (
	nativeMapHaulables   = "Verse.Pawn:get_MapHaulables"
	nativeThingsToHaul   = "Verse.ListerHaulables:ThingsPotentiallyNeedingHauling"
	nativeSortByDistance = "PickUpAndHaul.WorkGiver_HaulToInventory:SortByDistance"

	// ThingListCtor copies an enumerable of things into a new list.
	ThingListCtor = "System.Collections.Generic.List`1<Verse.Thing>:.ctor(IEnumerable)"
)

// haulProgram is PotentialWorkThingsGlobal as shipped: it sorts whatever
// ThingsPotentiallyNeedingHauling returns, which is the lister's live list.
const haulProgram = `
ldarg 0
call Verse.Pawn:get_MapHaulables
callvirt Verse.ListerHaulables:ThingsPotentiallyNeedingHauling
ldarg 0
call PickUpAndHaul.WorkGiver_HaulToInventory:SortByDistance
ret
`
